package transfer

import (
	"context"

	"optipos/internal/core/id"
)

// Filter narrows transfer listings.
type Filter struct {
	FromStoreID *id.ID
	ToStoreID   *id.ID
	Limit       int
	Offset      int
}

// Repository is the persistence port for transfer documents.
type Repository interface {
	Create(ctx context.Context, transfer *Transfer) error
	GetByID(ctx context.Context, transferID id.ID) (*Transfer, error)
	List(ctx context.Context, filter Filter) ([]*Transfer, error)
}
