package document_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"optipos/internal/core/apperror"
	"optipos/internal/core/id"
	"optipos/internal/domain/documents/transfer"
	"optipos/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "transfers"
	transferLinesTable = "transfer_lines"
)

var _ transfer.Repository = (*TransferRepo)(nil)

// TransferRepo implements transfer.Repository on PostgreSQL.
type TransferRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewTransferRepo creates the transfer repository.
func NewTransferRepo(txm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var transferColumns = []string{
	"id", "number", "from_store_id", "to_store_id", "note",
	"created_by", "created_at", "updated_at",
}

// Create inserts the transfer and its lines.
func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	sql, args, err := r.builder.Insert(transfersTable).
		Columns(transferColumns...).
		Values(
			t.ID, t.Number, t.FromStoreID, t.ToStoreID, t.Note,
			t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build transfer insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewInternal(fmt.Errorf("insert transfer: %w", err))
	}

	if len(t.Lines) == 0 {
		return nil
	}

	q := r.builder.Insert(transferLinesTable).
		Columns("line_id", "transfer_id", "line_no", "product_id", "quantity")
	for _, line := range t.Lines {
		q = q.Values(line.LineID, t.ID, line.LineNo, line.ProductID, line.Quantity)
	}

	sql, args, err = q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewInternal(fmt.Errorf("insert transfer lines: %w", err))
	}

	return nil
}

// GetByID loads the transfer and its lines.
func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	sql, args, err := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Eq{"id": transferID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transfer query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var t transfer.Transfer
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("transfer", transferID)
		}
		return nil, apperror.NewInternal(fmt.Errorf("get transfer: %w", err))
	}

	linesSQL, linesArgs, err := r.builder.Select("line_id", "line_no", "product_id", "quantity").
		From(transferLinesTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []transfer.Line
	if err := pgxscan.Select(ctx, querier, &lines, linesSQL, linesArgs...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("load transfer lines: %w", err))
	}
	t.Lines = lines

	return &t, nil
}

// List returns transfer headers matching the filter, without lines.
func (r *TransferRepo) List(ctx context.Context, filter transfer.Filter) ([]*transfer.Transfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		OrderBy("created_at DESC")

	if filter.FromStoreID != nil {
		q = q.Where(squirrel.Eq{"from_store_id": *filter.FromStoreID})
	}
	if filter.ToStoreID != nil {
		q = q.Where(squirrel.Eq{"to_store_id": *filter.ToStoreID})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transfers query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var transfers []*transfer.Transfer
	if err := pgxscan.Select(ctx, querier, &transfers, sql, args...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("list transfers: %w", err))
	}

	return transfers, nil
}
