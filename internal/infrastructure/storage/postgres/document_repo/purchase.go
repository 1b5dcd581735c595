// Package document_repo provides PostgreSQL implementations for business
// document repositories.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"optipos/internal/core/apperror"
	"optipos/internal/core/id"
	"optipos/internal/domain/documents/purchase"
	"optipos/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable = "purchase_orders"
	purchaseLinesTable  = "purchase_order_lines"
)

var _ purchase.Repository = (*PurchaseRepo)(nil)

// PurchaseRepo implements purchase.Repository on PostgreSQL.
type PurchaseRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewPurchaseRepo creates the purchase order repository.
func NewPurchaseRepo(txm *postgres.TxManager) *PurchaseRepo {
	return &PurchaseRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var purchaseOrderColumns = []string{
	"id", "number", "supplier_id", "store_id", "status", "note",
	"total_amount", "created_by", "created_at", "updated_at",
}

// Create inserts the order header and its lines.
func (r *PurchaseRepo) Create(ctx context.Context, order *purchase.PurchaseOrder) error {
	sql, args, err := r.builder.Insert(purchaseOrdersTable).
		Columns(purchaseOrderColumns...).
		Values(
			order.ID, order.Number, order.SupplierID, order.StoreID,
			order.Status, order.Note, order.TotalAmount,
			order.CreatedBy, order.CreatedAt, order.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build order insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewInternal(fmt.Errorf("insert purchase order: %w", err))
	}

	return r.saveLines(ctx, order.ID, order.Lines)
}

// Update rewrites the order header and replaces its lines.
func (r *PurchaseRepo) Update(ctx context.Context, order *purchase.PurchaseOrder) error {
	sql, args, err := r.builder.Update(purchaseOrdersTable).
		Set("supplier_id", order.SupplierID).
		Set("store_id", order.StoreID).
		Set("status", order.Status).
		Set("note", order.Note).
		Set("total_amount", order.TotalAmount).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": order.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build order update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("update purchase order: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase order", order.ID)
	}

	return r.saveLines(ctx, order.ID, order.Lines)
}

// saveLines replaces all lines of an order. Simple and correct for the
// small line counts documents carry.
func (r *PurchaseRepo) saveLines(ctx context.Context, orderID id.ID, lines []purchase.Line) error {
	querier := r.txm.GetQuerier(ctx)

	delSQL, delArgs, err := r.builder.Delete(purchaseLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lines delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return apperror.NewInternal(fmt.Errorf("delete purchase lines: %w", err))
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.builder.Insert(purchaseLinesTable).
		Columns("line_id", "order_id", "line_no", "product_id", "quantity", "unit_cost")
	for _, line := range lines {
		q = q.Values(line.LineID, orderID, line.LineNo, line.ProductID, line.Quantity, line.UnitCost)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewInternal(fmt.Errorf("insert purchase lines: %w", err))
	}

	return nil
}

// GetByID loads the order header and its lines.
func (r *PurchaseRepo) GetByID(ctx context.Context, orderID id.ID) (*purchase.PurchaseOrder, error) {
	sql, args, err := r.builder.Select(purchaseOrderColumns...).
		From(purchaseOrdersTable).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build order query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var order purchase.PurchaseOrder
	if err := pgxscan.Get(ctx, querier, &order, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("purchase order", orderID)
		}
		return nil, apperror.NewInternal(fmt.Errorf("get purchase order: %w", err))
	}

	lines, err := r.loadLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return &order, nil
}

func (r *PurchaseRepo) loadLines(ctx context.Context, orderID id.ID) ([]purchase.Line, error) {
	sql, args, err := r.builder.Select("line_id", "line_no", "product_id", "quantity", "unit_cost").
		From(purchaseLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var lines []purchase.Line
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("load purchase lines: %w", err))
	}
	return lines, nil
}

// List returns order headers matching the filter, without lines.
func (r *PurchaseRepo) List(ctx context.Context, filter purchase.Filter) ([]*purchase.PurchaseOrder, error) {
	q := r.builder.Select(purchaseOrderColumns...).
		From(purchaseOrdersTable).
		OrderBy("created_at DESC")

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *filter.StoreID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build orders query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var orders []*purchase.PurchaseOrder
	if err := pgxscan.Select(ctx, querier, &orders, sql, args...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("list purchase orders: %w", err))
	}

	return orders, nil
}

// SetStatus updates the lifecycle state only.
func (r *PurchaseRepo) SetStatus(ctx context.Context, orderID id.ID, status purchase.Status) error {
	sql, args, err := r.builder.Update(purchaseOrdersTable).
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("update order status: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase order", orderID)
	}
	return nil
}
