package ledger

import (
	"context"
	"time"

	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

// BalanceFilter narrows balance listings.
type BalanceFilter struct {
	ProductID *id.ID
	StoreID   *id.ID
	// ActiveOnly excludes deactivated balance rows.
	ActiveOnly bool
	Limit      int
	Offset     int
}

// TransactionFilter narrows ledger history listings.
type TransactionFilter struct {
	ProductID     *id.ID
	StoreID       *id.ID
	MovementType  *entity.MovementType
	ReferenceType *string
	ReferenceID   *id.ID
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// Repository is the persistence port of the stock ledger.
//
// Mutating methods are expected to run inside a transaction started by the
// tx manager; implementations resolve the active transaction from ctx.
type Repository interface {
	// EnsureBalanceForUpdate returns the balance row for (productID, storeID)
	// locked for the duration of the surrounding transaction, creating a
	// zero-quantity row first when the pair has never been seen. Concurrent
	// callers for the same pair serialize here.
	EnsureBalanceForUpdate(ctx context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error)

	// ReferencePosted reports whether a ledger entry already exists for the
	// given document reference and (product, store) pair.
	ReferencePosted(ctx context.Context, referenceType string, referenceID, productID, storeID id.ID) (bool, error)

	// CreateTransaction appends an entry to the ledger.
	CreateTransaction(ctx context.Context, txn *entity.StockTransaction) error

	// UpdateBalanceQuantity writes the new materialized quantity for a pair
	// whose row is currently locked by this transaction.
	UpdateBalanceQuantity(ctx context.Context, productID, storeID id.ID, quantity types.Quantity) error

	// UpdateBalanceSettings updates the caller-mutable balance fields.
	UpdateBalanceSettings(ctx context.Context, productID, storeID id.ID, settings entity.BalanceSettings) (*entity.InventoryBalance, error)

	GetBalance(ctx context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error)
	ListBalances(ctx context.Context, filter BalanceFilter) ([]*entity.InventoryBalance, error)

	GetTransaction(ctx context.Context, txnID id.ID) (*entity.StockTransaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*entity.StockTransaction, error)
}
