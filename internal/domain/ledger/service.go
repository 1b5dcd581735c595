// Package ledger implements the stock transaction engine: the single writer
// of the append-only stock ledger and its materialized balances.
package ledger

import (
	"context"

	"optipos/internal/core/apperror"
	appctx "optipos/internal/core/context"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/tx"
	"optipos/internal/core/types"
	"optipos/pkg/logger"
)

// MovementRequest describes one stock movement to post.
type MovementRequest struct {
	ProductID    id.ID
	StoreID      id.ID
	Quantity     types.Quantity
	MovementType entity.MovementType
	UnitCost     *types.Money

	// ReferenceType and ReferenceID link the movement to a business document.
	// Set both or neither. When set they make the post idempotent per
	// (reference, product, store).
	ReferenceType string
	ReferenceID   *id.ID

	Note string
}

// Validate checks structural invariants of the request.
func (r MovementRequest) Validate() error {
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product_id is required")
	}
	if id.IsNil(r.StoreID) {
		return apperror.NewValidation("store_id is required")
	}

	if err := entity.ValidateMovementSign(r.MovementType, r.Quantity); err != nil {
		return err
	}

	if (r.ReferenceType == "") != (r.ReferenceID == nil) {
		return apperror.NewValidation("reference_type and reference_id must be set together")
	}

	if r.UnitCost != nil && r.UnitCost.IsNegative() {
		return apperror.NewValidation("unit_cost must be non-negative")
	}

	return nil
}

func (r MovementRequest) hasReference() bool {
	return r.ReferenceType != "" && r.ReferenceID != nil
}

// requireActor rejects postings with no authenticated actor in context.
// Every ledger entry must name the identity that caused it.
func requireActor(ctx context.Context) error {
	if appctx.GetActorID(ctx) == "" {
		return apperror.NewValidation("actor identity is required").
			WithDetail("field", "created_by")
	}
	return nil
}

// Service is the stock transaction engine. All balance mutations in the
// system flow through it; nothing else writes inventory quantities.
type Service struct {
	repo         Repository
	txManager    tx.Manager
	lowStockRule *LowStockRule
}

// NewService creates the engine. A nil lowStockRule falls back to the
// default predicate.
func NewService(repo Repository, txManager tx.Manager, lowStockRule *LowStockRule) *Service {
	if lowStockRule == nil {
		lowStockRule = MustCompileLowStockRule(DefaultLowStockExpr)
	}
	return &Service{
		repo:         repo,
		txManager:    txManager,
		lowStockRule: lowStockRule,
	}
}

// PostMovement atomically appends a ledger entry and updates the materialized
// balance for the movement's (product, store) pair.
//
// The balance row is locked first, so concurrent movements against the same
// pair serialize and each entry records an accurate balance_after snapshot.
// When the request carries a document reference that was already posted for
// the pair, the call fails with a duplicate-posting error and writes nothing.
func (s *Service) PostMovement(ctx context.Context, req MovementRequest) (*entity.StockTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := requireActor(ctx); err != nil {
		return nil, err
	}

	var posted *entity.StockTransaction
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		posted, err = s.postLocked(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock movement posted",
		"transaction_id", posted.ID,
		"product_id", posted.ProductID,
		"store_id", posted.StoreID,
		"movement_type", posted.MovementType,
		"quantity", posted.Quantity.String(),
		"balance_after", posted.BalanceAfter.String(),
	)

	return posted, nil
}

// postLocked runs the posting algorithm inside the active transaction.
func (s *Service) postLocked(ctx context.Context, req MovementRequest) (*entity.StockTransaction, error) {
	balance, err := s.repo.EnsureBalanceForUpdate(ctx, req.ProductID, req.StoreID)
	if err != nil {
		return nil, err
	}

	if req.hasReference() {
		posted, err := s.repo.ReferencePosted(ctx, req.ReferenceType, *req.ReferenceID, req.ProductID, req.StoreID)
		if err != nil {
			return nil, err
		}
		if posted {
			return nil, apperror.NewDuplicatePosting(req.ReferenceType, *req.ReferenceID).
				WithDetail("product_id", req.ProductID).
				WithDetail("store_id", req.StoreID)
		}
	}

	newQuantity := balance.Quantity.Add(req.Quantity)
	if newQuantity.IsNegative() {
		return nil, apperror.NewInsufficientStock(
			req.ProductID.String(), req.StoreID.String(),
			req.Quantity.Abs().String(), balance.Quantity.String(),
		)
	}

	txn := entity.NewStockTransaction(req.ProductID, req.StoreID, req.Quantity, req.MovementType, appctx.GetActorID(ctx))
	txn.UnitCost = req.UnitCost
	txn.Note = req.Note
	txn.BalanceAfter = newQuantity
	if req.hasReference() {
		refType := req.ReferenceType
		txn.ReferenceType = &refType
		txn.ReferenceID = req.ReferenceID
	}

	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBalanceQuantity(ctx, req.ProductID, req.StoreID, newQuantity); err != nil {
		return nil, err
	}

	return txn, nil
}

// CountRequest records a physical stocktake result for one pair.
type CountRequest struct {
	ProductID       id.ID
	StoreID         id.ID
	CountedQuantity types.Quantity
	StocktakeID     id.ID
	Note            string
}

// RecordCount reconciles the ledger with a counted physical quantity.
//
// The delta between counted and current quantity is computed under the
// balance row lock, so a concurrent movement cannot slip between the read
// and the correction. A zero delta writes nothing and returns nil.
func (s *Service) RecordCount(ctx context.Context, req CountRequest) (*entity.StockTransaction, error) {
	if id.IsNil(req.ProductID) {
		return nil, apperror.NewValidation("product_id is required")
	}
	if id.IsNil(req.StoreID) {
		return nil, apperror.NewValidation("store_id is required")
	}
	if id.IsNil(req.StocktakeID) {
		return nil, apperror.NewValidation("stocktake_id is required")
	}
	if req.CountedQuantity.IsNegative() {
		return nil, apperror.NewValidation("counted quantity must be non-negative")
	}
	if err := requireActor(ctx); err != nil {
		return nil, err
	}

	var posted *entity.StockTransaction
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		balance, err := s.repo.EnsureBalanceForUpdate(ctx, req.ProductID, req.StoreID)
		if err != nil {
			return err
		}

		delta := req.CountedQuantity.Sub(balance.Quantity)
		if delta.IsZero() {
			logger.Debug(ctx, "stocktake matches ledger, nothing to post",
				"product_id", req.ProductID,
				"store_id", req.StoreID,
				"quantity", balance.Quantity.String(),
			)
			return nil
		}

		stocktakeID := req.StocktakeID
		posted, err = s.postLocked(ctx, MovementRequest{
			ProductID:     req.ProductID,
			StoreID:       req.StoreID,
			Quantity:      delta,
			MovementType:  entity.MovementCount,
			ReferenceType: entity.ReferenceStocktake,
			ReferenceID:   &stocktakeID,
			Note:          req.Note,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return posted, nil
}

// UpdateBalanceSettings changes the non-quantity fields of a balance row.
func (s *Service) UpdateBalanceSettings(ctx context.Context, productID, storeID id.ID, settings entity.BalanceSettings) (*entity.InventoryBalance, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	var updated *entity.InventoryBalance
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdateBalanceSettings(ctx, productID, storeID, settings)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// GetBalance returns the balance row for a pair.
func (s *Service) GetBalance(ctx context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error) {
	return s.repo.GetBalance(ctx, productID, storeID)
}

// ListBalances returns balance rows matching the filter.
func (s *Service) ListBalances(ctx context.Context, filter BalanceFilter) ([]*entity.InventoryBalance, error) {
	return s.repo.ListBalances(ctx, filter)
}

// GetTransaction returns a single ledger entry.
func (s *Service) GetTransaction(ctx context.Context, txnID id.ID) (*entity.StockTransaction, error) {
	return s.repo.GetTransaction(ctx, txnID)
}

// ListTransactions returns ledger history matching the filter.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*entity.StockTransaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// ListLowStock returns active balances matching the configured low-stock rule.
func (s *Service) ListLowStock(ctx context.Context, storeID *id.ID) ([]*entity.InventoryBalance, error) {
	balances, err := s.repo.ListBalances(ctx, BalanceFilter{StoreID: storeID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	low := make([]*entity.InventoryBalance, 0, len(balances))
	for _, b := range balances {
		matched, err := s.lowStockRule.Matches(b)
		if err != nil {
			return nil, err
		}
		if matched {
			low = append(low, b)
		}
	}
	return low, nil
}
