package sales

import (
	"context"
	"time"

	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/tx"
	"optipos/internal/core/types"
	"optipos/internal/domain/documents"
	"optipos/internal/domain/ledger"
	"optipos/pkg/logger"
)

// Service manages the sales order and shipment lifecycle.
type Service struct {
	orders    OrderRepository
	shipments ShipmentRepository
	poster    documents.MovementPoster
	txManager tx.Manager
}

// NewService creates the sales service.
func NewService(orders OrderRepository, shipments ShipmentRepository, poster documents.MovementPoster, txManager tx.Manager) *Service {
	return &Service{
		orders:    orders,
		shipments: shipments,
		poster:    poster,
		txManager: txManager,
	}
}

// Create persists a new order after validation.
func (s *Service) Create(ctx context.Context, order *SalesOrder) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if len(order.Lines) == 0 {
		return apperror.NewEmptyDocument("sales order", order.ID)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.orders.Create(ctx, order)
	})
}

// Confirm moves a pending order to confirmed.
func (s *Service) Confirm(ctx context.Context, orderID id.ID) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusPending {
		return apperror.NewBusinessRule(apperror.CodeDocumentState, "only pending orders can be confirmed").
			WithDetail("order_id", orderID).
			WithDetail("status", string(order.Status))
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.orders.SetStatus(ctx, orderID, StatusConfirmed)
	})
}

// Cancel cancels an order that has not shipped.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusShipped {
		return apperror.NewBusinessRule(apperror.CodeDocumentState, "shipped orders cannot be cancelled").
			WithDetail("order_id", orderID)
	}
	if order.Status == StatusCancelled {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.orders.SetStatus(ctx, orderID, StatusCancelled)
	})
}

// Ship records a shipment and posts an ISSUE movement for each shipped line.
//
// Each line carries the shipment as its document reference, so a crashed or
// partially failed run can be retried: lines already in the ledger come
// back as already_posted and are not deducted twice. The shipped counter on
// the order line is advanced only for freshly posted lines; a failure there
// is logged but never undoes the stock movement, since the ledger is the
// source of truth and the counter can be reconciled from it.
func (s *Service) Ship(ctx context.Context, shipment *Shipment) (*documents.PostingReport, error) {
	if err := shipment.Validate(); err != nil {
		return nil, err
	}
	if len(shipment.Lines) == 0 {
		return nil, apperror.NewEmptyDocument("shipment", shipment.ID)
	}

	order, err := s.orders.GetByID(ctx, shipment.OrderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case StatusCancelled:
		return nil, apperror.NewBusinessRule(apperror.CodeDocumentState, "cancelled orders cannot be shipped").
			WithDetail("order_id", order.ID)
	case StatusPending:
		return nil, apperror.NewBusinessRule(apperror.CodeDocumentState, "order must be confirmed before shipping").
			WithDetail("order_id", order.ID)
	}

	unitPrices := make(map[id.ID]types.Money, len(order.Lines))
	for _, line := range order.Lines {
		unitPrices[line.ProductID] = line.UnitPrice
	}
	for _, line := range shipment.Lines {
		if _, onOrder := unitPrices[line.ProductID]; !onOrder {
			return nil, apperror.NewValidation("shipment line product is not on the order").
				WithDetail("product_id", line.ProductID).
				WithDetail("order_id", order.ID)
		}
	}

	// Persist the shipment first so retries of the same shipment reuse its
	// reference. A duplicate create on retry is tolerated.
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.shipments.Create(ctx, shipment)
	})
	if err != nil && !apperror.IsDuplicatePosting(err) {
		if appErr, ok := apperror.AsAppError(err); !ok || appErr.Code != apperror.CodeConflict {
			return nil, err
		}
	}

	report := &documents.PostingReport{DocumentID: shipment.ID.String()}
	for _, line := range shipment.Lines {
		result := documents.LineResult{ProductID: line.ProductID.String()}

		refID := shipment.ID
		unitCost := unitPrices[line.ProductID]
		txn, err := s.poster.PostMovement(ctx, ledger.MovementRequest{
			ProductID:     line.ProductID,
			StoreID:       shipment.StoreID,
			Quantity:      line.Quantity.Neg(),
			UnitCost:      &unitCost,
			MovementType:  entity.MovementIssue,
			ReferenceType: entity.ReferenceShipment,
			ReferenceID:   &refID,
			Note:          "ship " + order.Number,
		})
		switch {
		case err == nil:
			result.Status = documents.LinePosted
			result.TransactionID = txn.ID.String()
			s.advanceShippedCounter(ctx, order.ID, line)
		case apperror.IsDuplicatePosting(err):
			result.Status = documents.LineAlreadyPosted
		default:
			result.Status = documents.LineFailed
			result.Error = err.Error()
			logger.Error(ctx, "shipment line posting failed",
				"shipment_id", shipment.ID,
				"order_id", order.ID,
				"product_id", line.ProductID,
				"error", err,
			)
		}

		report.Lines = append(report.Lines, result)
	}

	if report.AllPosted() {
		s.stampShippedAt(ctx, shipment)
		if err := s.markShippedIfComplete(ctx, order.ID); err != nil {
			return report, err
		}
	}

	return report, nil
}

// stampShippedAt records the completion time on the shipment once every
// line has landed in the ledger. A retried shipment keeps its original
// stamp.
func (s *Service) stampShippedAt(ctx context.Context, shipment *Shipment) {
	if shipment.ShippedAt != nil {
		return
	}
	now := time.Now().UTC()
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.shipments.MarkShipped(ctx, shipment.ID, now)
	})
	if err != nil {
		logger.Warn(ctx, "shipped_at stamp failed",
			"shipment_id", shipment.ID,
			"error", err,
		)
		return
	}
	shipment.ShippedAt = &now
}

// advanceShippedCounter bumps the order line's shipped quantity. Best
// effort: the ledger entry is already committed and stays authoritative.
func (s *Service) advanceShippedCounter(ctx context.Context, orderID id.ID, line ShipmentLine) {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.orders.IncrementShippedQuantity(ctx, orderID, line.ProductID, line.Quantity)
	})
	if err != nil {
		logger.Warn(ctx, "shipped counter update failed, ledger entry kept",
			"order_id", orderID,
			"product_id", line.ProductID,
			"quantity", line.Quantity.String(),
			"error", err,
		)
	}
}

// markShippedIfComplete marks the order shipped once every line is fully
// fulfilled.
func (s *Service) markShippedIfComplete(ctx context.Context, orderID id.ID) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusShipped {
		return nil
	}

	for _, line := range order.Lines {
		if line.QuantityShipped.LessThan(line.Quantity) {
			return nil
		}
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.orders.SetStatus(ctx, orderID, StatusShipped)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "sales order fully shipped", "order_id", orderID)
	return nil
}

// GetOrder returns one order with its lines.
func (s *Service) GetOrder(ctx context.Context, orderID id.ID) (*SalesOrder, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListOrders returns orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]*SalesOrder, error) {
	return s.orders.List(ctx, filter)
}

// GetShipment returns one shipment with its lines.
func (s *Service) GetShipment(ctx context.Context, shipmentID id.ID) (*Shipment, error) {
	return s.shipments.GetByID(ctx, shipmentID)
}

// ListShipments returns all shipments of an order.
func (s *Service) ListShipments(ctx context.Context, orderID id.ID) ([]*Shipment, error) {
	return s.shipments.ListByOrder(ctx, orderID)
}
