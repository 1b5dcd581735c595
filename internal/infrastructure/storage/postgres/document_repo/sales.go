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
	"optipos/internal/core/types"
	"optipos/internal/domain/documents/sales"
	"optipos/internal/infrastructure/storage/postgres"
)

const (
	salesOrdersTable   = "sales_orders"
	salesLinesTable    = "sales_order_lines"
	shipmentsTable     = "shipments"
	shipmentLinesTable = "shipment_lines"
)

var _ sales.OrderRepository = (*SalesOrderRepo)(nil)

// SalesOrderRepo implements sales.OrderRepository on PostgreSQL.
type SalesOrderRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewSalesOrderRepo creates the sales order repository.
func NewSalesOrderRepo(txm *postgres.TxManager) *SalesOrderRepo {
	return &SalesOrderRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var salesOrderColumns = []string{
	"id", "number", "customer_id", "store_id", "status", "note",
	"total_amount", "created_by", "created_at", "updated_at",
}

// Create inserts the order header and its lines.
func (r *SalesOrderRepo) Create(ctx context.Context, order *sales.SalesOrder) error {
	sql, args, err := r.builder.Insert(salesOrdersTable).
		Columns(salesOrderColumns...).
		Values(
			order.ID, order.Number, order.CustomerID, order.StoreID,
			order.Status, order.Note, order.TotalAmount,
			order.CreatedBy, order.CreatedAt, order.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build order insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewInternal(fmt.Errorf("insert sales order: %w", err))
	}

	if len(order.Lines) == 0 {
		return nil
	}

	q := r.builder.Insert(salesLinesTable).
		Columns("line_id", "order_id", "line_no", "product_id", "quantity", "quantity_shipped", "unit_price")
	for _, line := range order.Lines {
		q = q.Values(line.LineID, order.ID, line.LineNo, line.ProductID, line.Quantity, line.QuantityShipped, line.UnitPrice)
	}

	sql, args, err = q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewInternal(fmt.Errorf("insert sales lines: %w", err))
	}

	return nil
}

// GetByID loads the order header and its lines.
func (r *SalesOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*sales.SalesOrder, error) {
	sql, args, err := r.builder.Select(salesOrderColumns...).
		From(salesOrdersTable).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build order query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var order sales.SalesOrder
	if err := pgxscan.Get(ctx, querier, &order, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("sales order", orderID)
		}
		return nil, apperror.NewInternal(fmt.Errorf("get sales order: %w", err))
	}

	linesSQL, linesArgs, err := r.builder.Select("line_id", "line_no", "product_id", "quantity", "quantity_shipped", "unit_price").
		From(salesLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []sales.Line
	if err := pgxscan.Select(ctx, querier, &lines, linesSQL, linesArgs...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("load sales lines: %w", err))
	}
	order.Lines = lines

	return &order, nil
}

// List returns order headers matching the filter, without lines.
func (r *SalesOrderRepo) List(ctx context.Context, filter sales.OrderFilter) ([]*sales.SalesOrder, error) {
	q := r.builder.Select(salesOrderColumns...).
		From(salesOrdersTable).
		OrderBy("created_at DESC")

	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
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
	var orders []*sales.SalesOrder
	if err := pgxscan.Select(ctx, querier, &orders, sql, args...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("list sales orders: %w", err))
	}

	return orders, nil
}

// SetStatus updates the lifecycle state only.
func (r *SalesOrderRepo) SetStatus(ctx context.Context, orderID id.ID, status sales.Status) error {
	sql, args, err := r.builder.Update(salesOrdersTable).
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
		return apperror.NewNotFound("sales order", orderID)
	}
	return nil
}

// IncrementShippedQuantity advances the shipped counter with a single
// atomic statement. No read-modify-write, so concurrent shipments of the
// same order line cannot lose updates.
func (r *SalesOrderRepo) IncrementShippedQuantity(ctx context.Context, orderID, productID id.ID, delta types.Quantity) error {
	sql, args, err := r.builder.Update(salesLinesTable).
		Set("quantity_shipped", squirrel.Expr("quantity_shipped + ?", delta)).
		Where(squirrel.Eq{"order_id": orderID, "product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("increment shipped quantity: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sales order line", productID)
	}
	return nil
}

var _ sales.ShipmentRepository = (*ShipmentRepo)(nil)

// ShipmentRepo implements sales.ShipmentRepository on PostgreSQL.
type ShipmentRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewShipmentRepo creates the shipment repository.
func NewShipmentRepo(txm *postgres.TxManager) *ShipmentRepo {
	return &ShipmentRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var shipmentColumns = []string{
	"id", "number", "order_id", "store_id", "note",
	"shipped_at", "created_by", "created_at", "updated_at",
}

// Create inserts the shipment and its lines. Re-creating an existing
// shipment (a retry) is a no-op for the header.
func (r *ShipmentRepo) Create(ctx context.Context, shipment *sales.Shipment) error {
	sql, args, err := r.builder.Insert(shipmentsTable).
		Columns(shipmentColumns...).
		Values(
			shipment.ID, shipment.Number, shipment.OrderID, shipment.StoreID,
			shipment.Note, shipment.ShippedAt, shipment.CreatedBy,
			shipment.CreatedAt, shipment.UpdatedAt,
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build shipment insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("insert shipment: %w", err))
	}
	if tag.RowsAffected() == 0 {
		// retry of a known shipment, lines are already stored
		return nil
	}

	if len(shipment.Lines) == 0 {
		return nil
	}

	q := r.builder.Insert(shipmentLinesTable).
		Columns("line_id", "shipment_id", "line_no", "product_id", "quantity")
	for _, line := range shipment.Lines {
		q = q.Values(line.LineID, shipment.ID, line.LineNo, line.ProductID, line.Quantity)
	}

	sql, args, err = q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewInternal(fmt.Errorf("insert shipment lines: %w", err))
	}

	return nil
}

// GetByID loads the shipment and its lines.
func (r *ShipmentRepo) GetByID(ctx context.Context, shipmentID id.ID) (*sales.Shipment, error) {
	sql, args, err := r.builder.Select(shipmentColumns...).
		From(shipmentsTable).
		Where(squirrel.Eq{"id": shipmentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build shipment query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var shipment sales.Shipment
	if err := pgxscan.Get(ctx, querier, &shipment, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("shipment", shipmentID)
		}
		return nil, apperror.NewInternal(fmt.Errorf("get shipment: %w", err))
	}

	linesSQL, linesArgs, err := r.builder.Select("line_id", "line_no", "product_id", "quantity").
		From(shipmentLinesTable).
		Where(squirrel.Eq{"shipment_id": shipmentID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []sales.ShipmentLine
	if err := pgxscan.Select(ctx, querier, &lines, linesSQL, linesArgs...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("load shipment lines: %w", err))
	}
	shipment.Lines = lines

	return &shipment, nil
}

// MarkShipped stamps shipped_at. A shipment already carrying a stamp keeps
// its original one, so retries do not move the time.
func (r *ShipmentRepo) MarkShipped(ctx context.Context, shipmentID id.ID, shippedAt time.Time) error {
	sql, args, err := r.builder.Update(shipmentsTable).
		Set("shipped_at", squirrel.Expr("COALESCE(shipped_at, ?)", shippedAt)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": shipmentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build shipped_at update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("mark shipment shipped: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("shipment", shipmentID)
	}
	return nil
}

// ListByOrder returns all shipments of an order, without lines.
func (r *ShipmentRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*sales.Shipment, error) {
	sql, args, err := r.builder.Select(shipmentColumns...).
		From(shipmentsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build shipments query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var shipments []*sales.Shipment
	if err := pgxscan.Select(ctx, querier, &shipments, sql, args...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("list shipments: %w", err))
	}

	return shipments, nil
}
