package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optipos/internal/core/apperror"
	appctx "optipos/internal/core/context"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

// In-memory repository and transaction manager doubles. The double mirrors
// the row-locking contract of the real store: EnsureBalanceForUpdate takes a
// per-pair mutex that is held until the surrounding transaction finishes,
// and writes are buffered until commit. That makes the concurrency tests
// below exercise the same serialization the engine relies on in production.

type pairKey struct {
	product id.ID
	store   id.ID
}

type refKey struct {
	refType string
	refID   id.ID
	product id.ID
	store   id.ID
}

type memStore struct {
	mu       sync.Mutex
	balances map[pairKey]*entity.InventoryBalance
	txns     []*entity.StockTransaction
	refs     map[refKey]bool
	rowLocks map[pairKey]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		balances: make(map[pairKey]*entity.InventoryBalance),
		refs:     make(map[refKey]bool),
		rowLocks: make(map[pairKey]*sync.Mutex),
	}
}

func (s *memStore) rowLock(key pairKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rowLocks[key]; !ok {
		s.rowLocks[key] = &sync.Mutex{}
	}
	return s.rowLocks[key]
}

type memTx struct {
	store     *memStore
	held      []pairKey
	seen      map[pairKey]*entity.InventoryBalance
	newTxns   []*entity.StockTransaction
	newRefs   []refKey
	qtyWrites map[pairKey]types.Quantity
}

type memTxKey struct{}

func txFrom(ctx context.Context) *memTx {
	mtx, _ := ctx.Value(memTxKey{}).(*memTx)
	return mtx
}

func (t *memTx) lockPair(key pairKey) {
	for _, held := range t.held {
		if held == key {
			return
		}
	}
	t.store.rowLock(key).Lock()
	t.held = append(t.held, key)
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for key, qty := range t.qtyWrites {
		b, ok := t.store.balances[key]
		if !ok {
			b = &entity.InventoryBalance{
				ProductID:      key.product,
				StoreID:        key.store,
				Quantity:       types.Zero(),
				StockAlert:     types.Zero(),
				DiscountMethod: entity.DiscountPercentage,
				DiscountRate:   types.Zero(),
				IsActive:       true,
				CreatedAt:      time.Now().UTC(),
			}
			t.store.balances[key] = b
		}
		b.Quantity = qty
		b.UpdatedAt = time.Now().UTC()
	}
	t.store.txns = append(t.store.txns, t.newTxns...)
	for _, ref := range t.newRefs {
		t.store.refs[ref] = true
	}
}

func (t *memTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.rowLock(t.held[i]).Unlock()
	}
	t.held = nil
}

type memTxManager struct {
	store *memStore
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	mtx := &memTx{
		store:     m.store,
		seen:      make(map[pairKey]*entity.InventoryBalance),
		qtyWrites: make(map[pairKey]types.Quantity),
	}
	defer mtx.release()

	if err := fn(context.WithValue(ctx, memTxKey{}, mtx)); err != nil {
		return err
	}
	mtx.commit()
	return nil
}

type memRepo struct {
	store *memStore

	// failCreate and failUpdate inject storage errors for rollback tests.
	failCreate bool
	failUpdate bool
}

func (r *memRepo) EnsureBalanceForUpdate(ctx context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error) {
	mtx := txFrom(ctx)
	if mtx == nil {
		return nil, errors.New("no active transaction")
	}

	key := pairKey{productID, storeID}
	mtx.lockPair(key)

	if b, ok := mtx.seen[key]; ok {
		return b, nil
	}

	r.store.mu.Lock()
	var b entity.InventoryBalance
	if existing, ok := r.store.balances[key]; ok {
		b = *existing
	} else {
		b = entity.InventoryBalance{
			ProductID:      productID,
			StoreID:        storeID,
			Quantity:       types.Zero(),
			StockAlert:     types.Zero(),
			DiscountMethod: entity.DiscountPercentage,
			DiscountRate:   types.Zero(),
			IsActive:       true,
			CreatedAt:      time.Now().UTC(),
		}
	}
	r.store.mu.Unlock()

	mtx.seen[key] = &b
	return &b, nil
}

func (r *memRepo) ReferencePosted(ctx context.Context, referenceType string, referenceID, productID, storeID id.ID) (bool, error) {
	mtx := txFrom(ctx)
	key := refKey{referenceType, referenceID, productID, storeID}

	if mtx != nil {
		for _, ref := range mtx.newRefs {
			if ref == key {
				return true, nil
			}
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.refs[key], nil
}

func (r *memRepo) CreateTransaction(ctx context.Context, txn *entity.StockTransaction) error {
	if r.failCreate {
		return errors.New("storage failure: insert transaction")
	}
	mtx := txFrom(ctx)
	if mtx == nil {
		return errors.New("no active transaction")
	}

	mtx.newTxns = append(mtx.newTxns, txn)
	if txn.HasReference() {
		mtx.newRefs = append(mtx.newRefs, refKey{*txn.ReferenceType, *txn.ReferenceID, txn.ProductID, txn.StoreID})
	}
	return nil
}

func (r *memRepo) UpdateBalanceQuantity(ctx context.Context, productID, storeID id.ID, quantity types.Quantity) error {
	if r.failUpdate {
		return errors.New("storage failure: update balance")
	}
	mtx := txFrom(ctx)
	if mtx == nil {
		return errors.New("no active transaction")
	}

	key := pairKey{productID, storeID}
	mtx.qtyWrites[key] = quantity
	if b, ok := mtx.seen[key]; ok {
		b.Quantity = quantity
	}
	return nil
}

func (r *memRepo) UpdateBalanceSettings(ctx context.Context, productID, storeID id.ID, settings entity.BalanceSettings) (*entity.InventoryBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := pairKey{productID, storeID}
	b, ok := r.store.balances[key]
	if !ok {
		return nil, apperror.NewNotFound("inventory balance", productID)
	}

	b.StockAlert = settings.StockAlert
	b.DiscountMethod = settings.DiscountMethod
	b.DiscountRate = settings.DiscountRate
	b.IsActive = settings.IsActive
	b.UpdatedAt = time.Now().UTC()

	copied := *b
	return &copied, nil
}

func (r *memRepo) GetBalance(ctx context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	b, ok := r.store.balances[pairKey{productID, storeID}]
	if !ok {
		return nil, apperror.NewNotFound("inventory balance", productID)
	}
	copied := *b
	return &copied, nil
}

func (r *memRepo) ListBalances(ctx context.Context, filter BalanceFilter) ([]*entity.InventoryBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*entity.InventoryBalance
	for _, b := range r.store.balances {
		if filter.ProductID != nil && b.ProductID != *filter.ProductID {
			continue
		}
		if filter.StoreID != nil && b.StoreID != *filter.StoreID {
			continue
		}
		if filter.ActiveOnly && !b.IsActive {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memRepo) GetTransaction(ctx context.Context, txnID id.ID) (*entity.StockTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, txn := range r.store.txns {
		if txn.ID == txnID {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("stock transaction", txnID)
}

func (r *memRepo) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*entity.StockTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*entity.StockTransaction
	for _, txn := range r.store.txns {
		if filter.ProductID != nil && txn.ProductID != *filter.ProductID {
			continue
		}
		if filter.StoreID != nil && txn.StoreID != *filter.StoreID {
			continue
		}
		if filter.MovementType != nil && txn.MovementType != *filter.MovementType {
			continue
		}
		copied := *txn
		out = append(out, &copied)
	}
	return out, nil
}

func newTestService() (*Service, *memRepo) {
	store := newMemStore()
	repo := &memRepo{store: store}
	return NewService(repo, &memTxManager{store: store}, nil), repo
}

func testContext() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{ID: "tester"})
}

func TestPostMovementReceipt(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()

	txn, err := svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("10"),
		MovementType: entity.MovementReceipt,
	})
	require.NoError(t, err)
	assert.Equal(t, "10", txn.BalanceAfter.String())
	assert.Equal(t, "tester", txn.CreatedBy)

	balance, err := svc.GetBalance(ctx, productID, storeID)
	require.NoError(t, err)
	assert.Equal(t, "10", balance.Quantity.String())
}

func TestPostMovementRequiresActor(t *testing.T) {
	svc, _ := newTestService()
	productID, storeID := id.New(), id.New()

	// no actor in context: the entry would have an empty created_by
	_, err := svc.PostMovement(context.Background(), MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("1"),
		MovementType: entity.MovementReceipt,
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = svc.RecordCount(context.Background(), CountRequest{
		ProductID:       productID,
		StoreID:         storeID,
		CountedQuantity: types.MustQuantity("5"),
		StocktakeID:     id.New(),
	})
	require.Error(t, err)

	// nothing reached the ledger
	txns, err := svc.ListTransactions(testContext(), TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestPostMovementValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()
	refID := id.New()

	tests := []struct {
		name string
		req  MovementRequest
	}{
		{"missing product", MovementRequest{StoreID: storeID, Quantity: types.MustQuantity("1"), MovementType: entity.MovementReceipt}},
		{"missing store", MovementRequest{ProductID: productID, Quantity: types.MustQuantity("1"), MovementType: entity.MovementReceipt}},
		{"wrong sign", MovementRequest{ProductID: productID, StoreID: storeID, Quantity: types.MustQuantity("-1"), MovementType: entity.MovementReceipt}},
		{"zero quantity", MovementRequest{ProductID: productID, StoreID: storeID, Quantity: types.Zero(), MovementType: entity.MovementAdjust}},
		{"unknown type", MovementRequest{ProductID: productID, StoreID: storeID, Quantity: types.MustQuantity("1"), MovementType: "BOGUS"}},
		{"reference type without id", MovementRequest{ProductID: productID, StoreID: storeID, Quantity: types.MustQuantity("1"), MovementType: entity.MovementReceipt, ReferenceType: entity.ReferencePurchaseOrder}},
		{"reference id without type", MovementRequest{ProductID: productID, StoreID: storeID, Quantity: types.MustQuantity("1"), MovementType: entity.MovementReceipt, ReferenceID: &refID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PostMovement(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperror.IsAppError(err))
		})
	}

	// nothing reached storage
	txns, err := svc.ListTransactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestPostMovementInsufficientStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()

	_, err := svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("5"),
		MovementType: entity.MovementReceipt,
	})
	require.NoError(t, err)

	_, err = svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("-6"),
		MovementType: entity.MovementIssue,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// balance and ledger untouched by the failed attempt
	balance, err := svc.GetBalance(ctx, productID, storeID)
	require.NoError(t, err)
	assert.Equal(t, "5", balance.Quantity.String())

	txns, err := svc.ListTransactions(ctx, TransactionFilter{ProductID: &productID})
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	// draining to exactly zero is allowed
	_, err = svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("-5"),
		MovementType: entity.MovementIssue,
	})
	require.NoError(t, err)

	balance, err = svc.GetBalance(ctx, productID, storeID)
	require.NoError(t, err)
	assert.True(t, balance.Quantity.IsZero())
}

func TestPostMovementDuplicateReference(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, otherProduct, storeID := id.New(), id.New(), id.New()
	orderID := id.New()

	req := MovementRequest{
		ProductID:     productID,
		StoreID:       storeID,
		Quantity:      types.MustQuantity("4"),
		MovementType:  entity.MovementReceipt,
		ReferenceType: entity.ReferencePurchaseOrder,
		ReferenceID:   &orderID,
	}

	_, err := svc.PostMovement(ctx, req)
	require.NoError(t, err)

	_, err = svc.PostMovement(ctx, req)
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicatePosting(err))

	// the duplicate attempt wrote nothing
	balance, err := svc.GetBalance(ctx, productID, storeID)
	require.NoError(t, err)
	assert.Equal(t, "4", balance.Quantity.String())

	// another product line of the same document posts fine
	req.ProductID = otherProduct
	_, err = svc.PostMovement(ctx, req)
	require.NoError(t, err)
}

func TestPostMovementRollbackOnStorageError(t *testing.T) {
	svc, repo := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()

	_, err := svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("3"),
		MovementType: entity.MovementReceipt,
	})
	require.NoError(t, err)

	repo.failUpdate = true
	_, err = svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("2"),
		MovementType: entity.MovementReceipt,
	})
	require.Error(t, err)
	repo.failUpdate = false

	// the failed transaction left no trace: no orphaned ledger entry,
	// balance unchanged
	balance, err := svc.GetBalance(ctx, productID, storeID)
	require.NoError(t, err)
	assert.Equal(t, "3", balance.Quantity.String())

	txns, err := svc.ListTransactions(ctx, TransactionFilter{ProductID: &productID})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestLedgerReplayConsistency(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()

	movements := []struct {
		quantity     string
		movementType entity.MovementType
	}{
		{"10", entity.MovementReceipt},
		{"-4", entity.MovementIssue},
		{"2.5", entity.MovementAdjust},
		{"-1.5", entity.MovementTransferOut},
		{"3", entity.MovementTransferIn},
	}

	for _, m := range movements {
		_, err := svc.PostMovement(ctx, MovementRequest{
			ProductID:    productID,
			StoreID:      storeID,
			Quantity:     types.MustQuantity(m.quantity),
			MovementType: m.movementType,
		})
		require.NoError(t, err)
	}

	txns, err := svc.ListTransactions(ctx, TransactionFilter{ProductID: &productID, StoreID: &storeID})
	require.NoError(t, err)
	require.Len(t, txns, len(movements))

	// replaying the ledger reproduces both every snapshot and the balance
	running := types.Zero()
	for _, txn := range txns {
		running = running.Add(txn.Quantity)
		assert.True(t, txn.BalanceAfter.Equal(running),
			"balance_after %s != replayed %s", txn.BalanceAfter, running)
	}

	balance, err := svc.GetBalance(ctx, productID, storeID)
	require.NoError(t, err)
	assert.True(t, balance.Quantity.Equal(running))
}

func TestPostMovementConcurrent(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()

	const workers = 50

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PostMovement(ctx, MovementRequest{
				ProductID:    productID,
				StoreID:      storeID,
				Quantity:     types.NewQuantityFromInt(1),
				MovementType: entity.MovementReceipt,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	balance, err := svc.GetBalance(ctx, productID, storeID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), balance.Quantity.IntPart())

	// every post saw a distinct serialized state: balance_after values are
	// exactly 1..N
	txns, err := svc.ListTransactions(ctx, TransactionFilter{ProductID: &productID})
	require.NoError(t, err)
	require.Len(t, txns, workers)

	afters := make([]int, 0, workers)
	for _, txn := range txns {
		afters = append(afters, int(txn.BalanceAfter.IntPart()))
	}
	sort.Ints(afters)
	for i, after := range afters {
		assert.Equal(t, i+1, after)
	}
}

func TestRecordCount(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()

	_, err := svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("10"),
		MovementType: entity.MovementReceipt,
	})
	require.NoError(t, err)

	t.Run("shrinkage posts negative correction", func(t *testing.T) {
		txn, err := svc.RecordCount(ctx, CountRequest{
			ProductID:       productID,
			StoreID:         storeID,
			CountedQuantity: types.MustQuantity("7"),
			StocktakeID:     id.New(),
		})
		require.NoError(t, err)
		require.NotNil(t, txn)
		assert.Equal(t, entity.MovementCount, txn.MovementType)
		assert.Equal(t, "-3", txn.Quantity.String())
		assert.Equal(t, "7", txn.BalanceAfter.String())
	})

	t.Run("matching count posts nothing", func(t *testing.T) {
		txn, err := svc.RecordCount(ctx, CountRequest{
			ProductID:       productID,
			StoreID:         storeID,
			CountedQuantity: types.MustQuantity("7"),
			StocktakeID:     id.New(),
		})
		require.NoError(t, err)
		assert.Nil(t, txn)
	})

	t.Run("surplus posts positive correction", func(t *testing.T) {
		txn, err := svc.RecordCount(ctx, CountRequest{
			ProductID:       productID,
			StoreID:         storeID,
			CountedQuantity: types.MustQuantity("12"),
			StocktakeID:     id.New(),
		})
		require.NoError(t, err)
		require.NotNil(t, txn)
		assert.Equal(t, "5", txn.Quantity.String())
	})

	t.Run("negative count rejected", func(t *testing.T) {
		_, err := svc.RecordCount(ctx, CountRequest{
			ProductID:       productID,
			StoreID:         storeID,
			CountedQuantity: types.MustQuantity("-1"),
			StocktakeID:     id.New(),
		})
		require.Error(t, err)
	})

	t.Run("repeated stocktake reference is rejected", func(t *testing.T) {
		stocktakeID := id.New()
		_, err := svc.RecordCount(ctx, CountRequest{
			ProductID:       productID,
			StoreID:         storeID,
			CountedQuantity: types.MustQuantity("20"),
			StocktakeID:     stocktakeID,
		})
		require.NoError(t, err)

		_, err = svc.RecordCount(ctx, CountRequest{
			ProductID:       productID,
			StoreID:         storeID,
			CountedQuantity: types.MustQuantity("25"),
			StocktakeID:     stocktakeID,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsDuplicatePosting(err))
	})
}

func TestUpdateBalanceSettings(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	productID, storeID := id.New(), id.New()

	_, err := svc.PostMovement(ctx, MovementRequest{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     types.MustQuantity("1"),
		MovementType: entity.MovementReceipt,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateBalanceSettings(ctx, productID, storeID, entity.BalanceSettings{
		StockAlert:     types.MustQuantity("5"),
		DiscountMethod: entity.DiscountFlat,
		DiscountRate:   types.MustMoney("2"),
		IsActive:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "5", updated.StockAlert.String())
	assert.Equal(t, entity.DiscountFlat, updated.DiscountMethod)

	// quantity is not reachable through settings
	assert.Equal(t, "1", updated.Quantity.String())

	_, err = svc.UpdateBalanceSettings(ctx, productID, storeID, entity.BalanceSettings{
		StockAlert:     types.MustQuantity("-1"),
		DiscountMethod: entity.DiscountFlat,
		DiscountRate:   types.Zero(),
	})
	require.Error(t, err)
}

func TestListLowStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := testContext()
	storeID := id.New()

	seed := func(qty, alert string, active bool) id.ID {
		productID := id.New()
		_, err := svc.PostMovement(ctx, MovementRequest{
			ProductID:    productID,
			StoreID:      storeID,
			Quantity:     types.MustQuantity(qty),
			MovementType: entity.MovementReceipt,
		})
		require.NoError(t, err)
		_, err = svc.UpdateBalanceSettings(ctx, productID, storeID, entity.BalanceSettings{
			StockAlert:     types.MustQuantity(alert),
			DiscountMethod: entity.DiscountPercentage,
			DiscountRate:   types.Zero(),
			IsActive:       active,
		})
		require.NoError(t, err)
		return productID
	}

	lowProduct := seed("2", "5", true)
	seed("10", "5", true)        // healthy
	seed("1", "5", false)        // low but inactive
	atAlert := seed("5", "5", true)

	low, err := svc.ListLowStock(ctx, &storeID)
	require.NoError(t, err)
	require.Len(t, low, 2)

	got := map[id.ID]bool{}
	for _, b := range low {
		got[b.ProductID] = true
	}
	assert.True(t, got[lowProduct])
	assert.True(t, got[atAlert])
}
