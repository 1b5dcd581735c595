package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
	"optipos/internal/domain/documents"
	"optipos/internal/domain/ledger"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakePoster mimics the ledger's idempotency guard: a repeated
// (reference, product, store) triple gets a duplicate-posting error.
type fakePoster struct {
	posted   map[string]bool
	requests []ledger.MovementRequest

	// failProducts forces a storage-style failure for specific products.
	failProducts map[id.ID]bool
}

func newFakePoster() *fakePoster {
	return &fakePoster{
		posted:       make(map[string]bool),
		failProducts: make(map[id.ID]bool),
	}
}

func (p *fakePoster) PostMovement(ctx context.Context, req ledger.MovementRequest) (*entity.StockTransaction, error) {
	if p.failProducts[req.ProductID] {
		return nil, errors.New("storage failure")
	}

	key := req.ReferenceType + "/" + req.ReferenceID.String() + "/" + req.ProductID.String() + "/" + req.StoreID.String()
	if p.posted[key] {
		return nil, apperror.NewDuplicatePosting(req.ReferenceType, *req.ReferenceID)
	}
	p.posted[key] = true
	p.requests = append(p.requests, req)

	txn := entity.NewStockTransaction(req.ProductID, req.StoreID, req.Quantity, req.MovementType, "tester")
	return txn, nil
}

type memRepo struct {
	orders map[id.ID]*PurchaseOrder
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[id.ID]*PurchaseOrder)}
}

func (r *memRepo) Create(ctx context.Context, order *PurchaseOrder) error {
	r.orders[order.ID] = order
	return nil
}

func (r *memRepo) Update(ctx context.Context, order *PurchaseOrder) error {
	r.orders[order.ID] = order
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", orderID)
	}
	return order, nil
}

func (r *memRepo) List(ctx context.Context, filter Filter) ([]*PurchaseOrder, error) {
	var out []*PurchaseOrder
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *memRepo) SetStatus(ctx context.Context, orderID id.ID, status Status) error {
	order, ok := r.orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase order", orderID)
	}
	order.Status = status
	return nil
}

func newTestOrder(lines int) *PurchaseOrder {
	order := NewPurchaseOrder("PO-001", "tester", id.New(), id.New())
	for i := 0; i < lines; i++ {
		order.AddLine(id.New(), types.MustQuantity("5"), types.MustMoney("2.50"))
	}
	order.Status = StatusOrdered
	return order
}

func TestCreate(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, newFakePoster(), fakeTxManager{})
	ctx := context.Background()

	order := newTestOrder(2)
	order.Status = StatusPending
	require.NoError(t, svc.Create(ctx, order))
	assert.Equal(t, "25", order.TotalAmount.String())

	t.Run("empty order rejected", func(t *testing.T) {
		empty := NewPurchaseOrder("PO-002", "tester", id.New(), id.New())
		err := svc.Create(ctx, empty)
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeEmptyDocument, appErr.Code)
	})

	t.Run("invalid line rejected", func(t *testing.T) {
		bad := NewPurchaseOrder("PO-003", "tester", id.New(), id.New())
		bad.Lines = append(bad.Lines, Line{LineID: id.New(), LineNo: 1, ProductID: id.New(), Quantity: types.Zero()})
		assert.Error(t, svc.Create(ctx, bad))
	})

	t.Run("duplicate product rejected", func(t *testing.T) {
		productID := id.New()
		dup := NewPurchaseOrder("PO-004", "tester", id.New(), id.New())
		dup.AddLine(productID, types.MustQuantity("5"), types.MustMoney("2.50"))
		dup.AddLine(productID, types.MustQuantity("3"), types.MustMoney("2.50"))

		err := svc.Create(ctx, dup)
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
	})
}

func TestReceive(t *testing.T) {
	repo := newMemRepo()
	poster := newFakePoster()
	svc := NewService(repo, poster, fakeTxManager{})
	ctx := context.Background()

	order := newTestOrder(3)
	require.NoError(t, repo.Create(ctx, order))

	report, err := svc.Receive(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, report.Lines, 3)
	assert.True(t, report.AllPosted())
	assert.Equal(t, 3, report.PostedCount())

	// every movement is a positive RECEIPT referencing the order
	for _, req := range poster.requests {
		assert.Equal(t, entity.MovementReceipt, req.MovementType)
		assert.True(t, req.Quantity.IsPositive())
		assert.Equal(t, entity.ReferencePurchaseOrder, req.ReferenceType)
		assert.Equal(t, order.ID, *req.ReferenceID)
		require.NotNil(t, req.UnitCost)
	}

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, got.Status)

	t.Run("receiving again is blocked", func(t *testing.T) {
		_, err := svc.Receive(ctx, order.ID)
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeDocumentState, appErr.Code)
	})
}

func TestReceivePartialRetry(t *testing.T) {
	repo := newMemRepo()
	poster := newFakePoster()
	svc := NewService(repo, poster, fakeTxManager{})
	ctx := context.Background()

	order := newTestOrder(3)
	require.NoError(t, repo.Create(ctx, order))

	// first attempt: last line fails
	poster.failProducts[order.Lines[2].ProductID] = true
	report, err := svc.Receive(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, report.AllPosted())
	assert.Equal(t, 2, report.PostedCount())
	assert.Equal(t, documents.LineFailed, report.Lines[2].Status)

	got, _ := repo.GetByID(ctx, order.ID)
	assert.Equal(t, StatusOrdered, got.Status, "partial receive must not mark the order received")

	// retry: first two lines are already in the ledger, only the third posts
	delete(poster.failProducts, order.Lines[2].ProductID)
	report, err = svc.Receive(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, report.AllPosted())
	assert.Equal(t, 1, report.PostedCount())
	assert.Equal(t, documents.LineAlreadyPosted, report.Lines[0].Status)
	assert.Equal(t, documents.LineAlreadyPosted, report.Lines[1].Status)
	assert.Equal(t, documents.LinePosted, report.Lines[2].Status)

	got, _ = repo.GetByID(ctx, order.ID)
	assert.Equal(t, StatusReceived, got.Status)

	// the ledger saw each line exactly once
	assert.Len(t, poster.requests, 3)
}

func TestReceiveGuards(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, newFakePoster(), fakeTxManager{})
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.Receive(ctx, id.New())
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("cancelled order", func(t *testing.T) {
		order := newTestOrder(1)
		order.Status = StatusCancelled
		require.NoError(t, repo.Create(ctx, order))

		_, err := svc.Receive(ctx, order.ID)
		require.Error(t, err)
	})

	t.Run("order without lines", func(t *testing.T) {
		order := NewPurchaseOrder("PO-empty", "tester", id.New(), id.New())
		order.Status = StatusOrdered
		require.NoError(t, repo.Create(ctx, order))

		_, err := svc.Receive(ctx, order.ID)
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeEmptyDocument, appErr.Code)
	})
}

func TestCancel(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, newFakePoster(), fakeTxManager{})
	ctx := context.Background()

	order := newTestOrder(1)
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, svc.Cancel(ctx, order.ID))

	got, _ := repo.GetByID(ctx, order.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	t.Run("received order cannot be cancelled", func(t *testing.T) {
		received := newTestOrder(1)
		received.Status = StatusReceived
		require.NoError(t, repo.Create(ctx, received))
		assert.Error(t, svc.Cancel(ctx, received.ID))
	})
}
