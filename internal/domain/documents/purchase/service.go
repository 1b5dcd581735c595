package purchase

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

// Service manages the purchase order lifecycle.
type Service struct {
	repo      Repository
	poster    documents.MovementPoster
	txManager tx.Manager
}

// NewService creates the purchase order service.
func NewService(repo Repository, poster documents.MovementPoster, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		poster:    poster,
		txManager: txManager,
	}
}

// Create persists a new order after validation.
func (s *Service) Create(ctx context.Context, order *PurchaseOrder) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if len(order.Lines) == 0 {
		return apperror.NewEmptyDocument("purchase order", order.ID)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, order)
	})
}

// MarkOrdered moves a pending order to ordered.
func (s *Service) MarkOrdered(ctx context.Context, orderID id.ID) error {
	return s.transition(ctx, orderID, StatusPending, StatusOrdered)
}

// Cancel cancels an order that has not been received.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusReceived {
		return apperror.NewBusinessRule(apperror.CodeDocumentState, "received orders cannot be cancelled").
			WithDetail("order_id", orderID)
	}
	if order.Status == StatusCancelled {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetStatus(ctx, orderID, StatusCancelled)
	})
}

// Receive posts RECEIPT movements for every order line and, when all lines
// are in the ledger, marks the order received.
//
// Each line is posted independently with the order as its document
// reference, so re-running Receive after a partial failure only posts the
// lines that are still missing. Lines already in the ledger are reported as
// already_posted, never posted twice.
func (s *Service) Receive(ctx context.Context, orderID id.ID) (*documents.PostingReport, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case StatusCancelled:
		return nil, apperror.NewBusinessRule(apperror.CodeDocumentState, "cancelled orders cannot be received").
			WithDetail("order_id", orderID)
	case StatusReceived:
		return nil, apperror.NewBusinessRule(apperror.CodeDocumentState, "order is already received").
			WithDetail("order_id", orderID)
	}

	if len(order.Lines) == 0 {
		return nil, apperror.NewEmptyDocument("purchase order", orderID)
	}

	report := &documents.PostingReport{DocumentID: orderID.String()}
	for _, line := range order.Lines {
		result := documents.LineResult{ProductID: line.ProductID.String()}

		unitCost := line.UnitCost
		refID := order.ID
		txn, err := s.poster.PostMovement(ctx, ledger.MovementRequest{
			ProductID:     line.ProductID,
			StoreID:       order.StoreID,
			Quantity:      line.Quantity,
			MovementType:  entity.MovementReceipt,
			UnitCost:      &unitCost,
			ReferenceType: entity.ReferencePurchaseOrder,
			ReferenceID:   &refID,
			Note:          "receive " + order.Number,
		})
		switch {
		case err == nil:
			result.Status = documents.LinePosted
			result.TransactionID = txn.ID.String()
		case apperror.IsDuplicatePosting(err):
			result.Status = documents.LineAlreadyPosted
		default:
			result.Status = documents.LineFailed
			result.Error = err.Error()
			logger.Error(ctx, "purchase line posting failed",
				"order_id", orderID,
				"product_id", line.ProductID,
				"error", err,
			)
		}

		report.Lines = append(report.Lines, result)
	}

	if report.AllPosted() {
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.repo.SetStatus(ctx, orderID, StatusReceived)
		})
		if err != nil {
			return report, err
		}

		logger.Info(ctx, "purchase order received",
			"order_id", orderID,
			"lines_posted", report.PostedCount(),
		)
	}

	return report, nil
}

// GetByID returns one order with its lines.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	return s.repo.GetByID(ctx, orderID)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*PurchaseOrder, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) transition(ctx context.Context, orderID id.ID, from, to Status) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != from {
		return apperror.NewBusinessRule(apperror.CodeDocumentState, "invalid status transition").
			WithDetail("order_id", orderID).
			WithDetail("from", string(order.Status)).
			WithDetail("to", string(to))
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetStatus(ctx, orderID, to)
	})
}
