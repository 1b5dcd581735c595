package transfer

import (
	"context"

	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/tx"
	"optipos/internal/domain/documents"
	"optipos/internal/domain/ledger"
	"optipos/pkg/logger"
)

// Service executes stock transfers between stores.
type Service struct {
	repo      Repository
	poster    documents.MovementPoster
	txManager tx.Manager
}

// NewService creates the transfer service.
func NewService(repo Repository, poster documents.MovementPoster, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		poster:    poster,
		txManager: txManager,
	}
}

// Execute validates, persists and posts the transfer atomically.
//
// The whole transfer runs in one transaction: the OUT and IN entries for
// every line commit together or not at all. The ledger posts join this
// transaction through the context, so an insufficient balance on any line
// rolls back the entire document, the already posted lines included.
func (s *Service) Execute(ctx context.Context, transfer *Transfer) error {
	if err := transfer.Validate(); err != nil {
		return err
	}
	if len(transfer.Lines) == 0 {
		return apperror.NewEmptyDocument("transfer", transfer.ID)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, transfer); err != nil {
			return err
		}

		for _, line := range transfer.Lines {
			if err := s.postLine(ctx, transfer, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock transfer executed",
		"transfer_id", transfer.ID,
		"from_store_id", transfer.FromStoreID,
		"to_store_id", transfer.ToStoreID,
		"lines", len(transfer.Lines),
	)
	return nil
}

// postLine posts the OUT side first so the source balance check happens
// before anything lands at the destination.
func (s *Service) postLine(ctx context.Context, transfer *Transfer, line Line) error {
	refID := transfer.ID

	_, err := s.poster.PostMovement(ctx, ledger.MovementRequest{
		ProductID:     line.ProductID,
		StoreID:       transfer.FromStoreID,
		Quantity:      line.Quantity.Neg(),
		MovementType:  entity.MovementTransferOut,
		ReferenceType: entity.ReferenceTransfer,
		ReferenceID:   &refID,
		Note:          "transfer " + transfer.Number + " out",
	})
	if err != nil {
		return err
	}

	_, err = s.poster.PostMovement(ctx, ledger.MovementRequest{
		ProductID:     line.ProductID,
		StoreID:       transfer.ToStoreID,
		Quantity:      line.Quantity,
		MovementType:  entity.MovementTransferIn,
		ReferenceType: entity.ReferenceTransfer,
		ReferenceID:   &refID,
		Note:          "transfer " + transfer.Number + " in",
	})
	return err
}

// GetByID returns one transfer with its lines.
func (s *Service) GetByID(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.repo.GetByID(ctx, transferID)
}

// List returns transfers matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Transfer, error) {
	return s.repo.List(ctx, filter)
}
