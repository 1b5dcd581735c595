// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
	"optipos/internal/domain/ledger"
	"optipos/internal/infrastructure/storage/postgres"
)

const (
	transactionsTable = "stock_transactions"
	balancesTable     = "inventory_balances"

	// referenceUniqueIndex guards against double posting at the storage
	// level, backing up the in-transaction existence check.
	referenceUniqueIndex = "ux_stock_transactions_reference"
)

// SQLSTATE codes of interest.
const (
	codeLockNotAvailable = "55P03"
	codeUniqueViolation  = "23505"
)

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository on PostgreSQL.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates the ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var transactionColumns = []string{
	"id", "product_id", "store_id", "quantity", "unit_cost",
	"movement_type", "reference_type", "reference_id",
	"created_by", "balance_after", "note", "created_at",
}

var balanceColumns = []string{
	"product_id", "store_id", "quantity", "stock_alert",
	"discount_method", "discount_rate", "is_active",
	"created_at", "updated_at",
}

// EnsureBalanceForUpdate locks the balance row for the pair, creating a
// zero row first when missing. The insert races benignly: ON CONFLICT DO
// NOTHING lets concurrent first movements for a fresh pair proceed to the
// row lock, where they serialize.
func (r *LedgerRepo) EnsureBalanceForUpdate(ctx context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error) {
	querier := r.txm.GetQuerier(ctx)

	now := time.Now().UTC()
	insertSQL, args, err := r.builder.Insert(balancesTable).
		Columns(balanceColumns...).
		Values(productID, storeID, types.Zero(), types.Zero(),
			entity.DiscountPercentage, types.Zero(), true, now, now).
		Suffix("ON CONFLICT (product_id, store_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build balance insert: %w", err)
	}
	if _, err := querier.Exec(ctx, insertSQL, args...); err != nil {
		return nil, mapPgError(err, "ensure balance row")
	}

	selectSQL, args, err := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build balance select: %w", err)
	}

	var balance entity.InventoryBalance
	if err := pgxscan.Get(ctx, querier, &balance, selectSQL, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("inventory balance", productID)
		}
		return nil, mapPgError(err, "lock balance row")
	}

	return &balance, nil
}

// ReferencePosted reports whether a ledger entry for the reference and pair
// already exists.
func (r *LedgerRepo) ReferencePosted(ctx context.Context, referenceType string, referenceID, productID, storeID id.ID) (bool, error) {
	sql, args, err := r.builder.Select("1").
		From(transactionsTable).
		Where(squirrel.Eq{
			"reference_type": referenceType,
			"reference_id":   referenceID,
			"product_id":     productID,
			"store_id":       storeID,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build reference query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var one int
	err = querier.QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapPgError(err, "check reference")
	}
	return true, nil
}

// CreateTransaction appends a ledger entry. A unique violation on the
// reference index means another transaction posted the same document line
// between our check and the insert.
func (r *LedgerRepo) CreateTransaction(ctx context.Context, txn *entity.StockTransaction) error {
	sql, args, err := r.builder.Insert(transactionsTable).
		Columns(transactionColumns...).
		Values(
			txn.ID, txn.ProductID, txn.StoreID, txn.Quantity, txn.UnitCost,
			txn.MovementType, txn.ReferenceType, txn.ReferenceID,
			txn.CreatedBy, txn.BalanceAfter, txn.Note, txn.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build transaction insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation &&
			strings.Contains(pgErr.ConstraintName, referenceUniqueIndex) && txn.HasReference() {
			return apperror.NewDuplicatePosting(*txn.ReferenceType, *txn.ReferenceID).
				WithDetail("product_id", txn.ProductID).
				WithDetail("store_id", txn.StoreID)
		}
		return mapPgError(err, "insert transaction")
	}

	return nil
}

// UpdateBalanceQuantity writes the materialized quantity for a locked pair.
func (r *LedgerRepo) UpdateBalanceQuantity(ctx context.Context, productID, storeID id.ID, quantity types.Quantity) error {
	sql, args, err := r.builder.Update(balancesTable).
		Set("quantity", quantity).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build balance update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return mapPgError(err, "update balance quantity")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("inventory balance", productID)
	}
	return nil
}

// UpdateBalanceSettings updates the caller-mutable balance fields.
func (r *LedgerRepo) UpdateBalanceSettings(ctx context.Context, productID, storeID id.ID, settings entity.BalanceSettings) (*entity.InventoryBalance, error) {
	sql, args, err := r.builder.Update(balancesTable).
		Set("stock_alert", settings.StockAlert).
		Set("discount_method", settings.DiscountMethod).
		Set("discount_rate", settings.DiscountRate).
		Set("is_active", settings.IsActive).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		Suffix("RETURNING " + strings.Join(balanceColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build settings update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var balance entity.InventoryBalance
	if err := pgxscan.Get(ctx, querier, &balance, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("inventory balance", productID)
		}
		return nil, mapPgError(err, "update balance settings")
	}

	return &balance, nil
}

// GetBalance returns one balance row without locking.
func (r *LedgerRepo) GetBalance(ctx context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error) {
	sql, args, err := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build balance query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var balance entity.InventoryBalance
	if err := pgxscan.Get(ctx, querier, &balance, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("inventory balance", productID)
		}
		return nil, mapPgError(err, "get balance")
	}

	return &balance, nil
}

// ListBalances returns balance rows matching the filter.
func (r *LedgerRepo) ListBalances(ctx context.Context, filter ledger.BalanceFilter) ([]*entity.InventoryBalance, error) {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		OrderBy("updated_at DESC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *filter.StoreID})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build balances query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var balances []*entity.InventoryBalance
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, mapPgError(err, "list balances")
	}

	return balances, nil
}

// GetTransaction returns one ledger entry.
func (r *LedgerRepo) GetTransaction(ctx context.Context, txnID id.ID) (*entity.StockTransaction, error) {
	sql, args, err := r.builder.Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"id": txnID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transaction query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var txn entity.StockTransaction
	if err := pgxscan.Get(ctx, querier, &txn, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("stock transaction", txnID)
		}
		return nil, mapPgError(err, "get transaction")
	}

	return &txn, nil
}

// ListTransactions returns ledger history matching the filter, most recent
// first. UUIDv7 ids break ties between entries sharing a timestamp.
func (r *LedgerRepo) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*entity.StockTransaction, error) {
	q := r.builder.Select(transactionColumns...).
		From(transactionsTable).
		OrderBy("created_at DESC", "id DESC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *filter.StoreID})
	}
	if filter.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.MovementType})
	}
	if filter.ReferenceType != nil {
		q = q.Where(squirrel.Eq{"reference_type": *filter.ReferenceType})
	}
	if filter.ReferenceID != nil {
		q = q.Where(squirrel.Eq{"reference_id": *filter.ReferenceID})
	}
	if filter.CreatedFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.CreatedTo})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transactions query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var txns []*entity.StockTransaction
	if err := pgxscan.Select(ctx, querier, &txns, sql, args...); err != nil {
		return nil, mapPgError(err, "list transactions")
	}

	return txns, nil
}

// mapPgError translates driver errors into app errors. Lock timeouts come
// back as a retryable busy error.
func mapPgError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeLockNotAvailable {
		return apperror.NewBusy("inventory balance")
	}
	return apperror.NewInternal(fmt.Errorf("%s: %w", op, err))
}
