package purchase

import (
	"context"

	"optipos/internal/core/id"
)

// Filter narrows purchase order listings.
type Filter struct {
	SupplierID *id.ID
	StoreID    *id.ID
	Status     *Status
	Limit      int
	Offset     int
}

// Repository is the persistence port for purchase orders.
type Repository interface {
	Create(ctx context.Context, order *PurchaseOrder) error
	Update(ctx context.Context, order *PurchaseOrder) error
	GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
	List(ctx context.Context, filter Filter) ([]*PurchaseOrder, error)

	// SetStatus updates only the lifecycle state.
	SetStatus(ctx context.Context, orderID id.ID, status Status) error
}
