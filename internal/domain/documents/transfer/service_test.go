package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
	"optipos/internal/domain/ledger"
)

// The doubles here model transactional visibility: movements posted inside
// a transaction only become committed when the transaction function returns
// nil. That lets the tests check the all-or-nothing contract of Execute.

type txRecord struct {
	posted    []ledger.MovementRequest
	transfers []*Transfer
}

type txRecordKey struct{}

type recordingTxManager struct {
	committed *txRecord
}

func newRecordingTxManager() *recordingTxManager {
	return &recordingTxManager{committed: &txRecord{}}
}

func (m *recordingTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txRecordKey{}) != nil {
		return fn(ctx)
	}

	record := &txRecord{}
	if err := fn(context.WithValue(ctx, txRecordKey{}, record)); err != nil {
		return err
	}
	m.committed.posted = append(m.committed.posted, record.posted...)
	m.committed.transfers = append(m.committed.transfers, record.transfers...)
	return nil
}

type txPoster struct {
	failAt map[pairID]error
}

type pairID struct {
	product id.ID
	store   id.ID
}

func (p *txPoster) PostMovement(ctx context.Context, req ledger.MovementRequest) (*entity.StockTransaction, error) {
	record, _ := ctx.Value(txRecordKey{}).(*txRecord)
	if record == nil {
		return nil, apperror.NewInternal(nil)
	}

	if err := p.failAt[pairID{req.ProductID, req.StoreID}]; err != nil {
		return nil, err
	}

	record.posted = append(record.posted, req)
	return entity.NewStockTransaction(req.ProductID, req.StoreID, req.Quantity, req.MovementType, "tester"), nil
}

type txRepo struct{}

func (txRepo) Create(ctx context.Context, transfer *Transfer) error {
	record, _ := ctx.Value(txRecordKey{}).(*txRecord)
	if record == nil {
		return apperror.NewInternal(nil)
	}
	record.transfers = append(record.transfers, transfer)
	return nil
}

func (txRepo) GetByID(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return nil, apperror.NewNotFound("transfer", transferID)
}

func (txRepo) List(ctx context.Context, filter Filter) ([]*Transfer, error) {
	return nil, nil
}

func newTestTransfer(lines int) *Transfer {
	t := NewTransfer("TR-001", "tester", id.New(), id.New())
	for i := 0; i < lines; i++ {
		t.AddLine(id.New(), types.MustQuantity("4"))
	}
	return t
}

func TestExecute(t *testing.T) {
	manager := newRecordingTxManager()
	poster := &txPoster{failAt: make(map[pairID]error)}
	svc := NewService(txRepo{}, poster, manager)
	ctx := context.Background()

	transfer := newTestTransfer(2)
	require.NoError(t, svc.Execute(ctx, transfer))

	// one OUT and one IN per line, OUT first
	require.Len(t, manager.committed.posted, 4)
	for i, line := range transfer.Lines {
		out := manager.committed.posted[i*2]
		in := manager.committed.posted[i*2+1]

		assert.Equal(t, entity.MovementTransferOut, out.MovementType)
		assert.Equal(t, transfer.FromStoreID, out.StoreID)
		assert.True(t, out.Quantity.Equal(line.Quantity.Neg()))

		assert.Equal(t, entity.MovementTransferIn, in.MovementType)
		assert.Equal(t, transfer.ToStoreID, in.StoreID)
		assert.True(t, in.Quantity.Equal(line.Quantity))

		assert.Equal(t, entity.ReferenceTransfer, out.ReferenceType)
		assert.Equal(t, transfer.ID, *out.ReferenceID)
		assert.Equal(t, transfer.ID, *in.ReferenceID)
	}

	require.Len(t, manager.committed.transfers, 1)
}

func TestExecuteAtomicRollback(t *testing.T) {
	manager := newRecordingTxManager()
	poster := &txPoster{failAt: make(map[pairID]error)}
	svc := NewService(txRepo{}, poster, manager)
	ctx := context.Background()

	transfer := newTestTransfer(2)

	// the second line has no stock at the source store
	poster.failAt[pairID{transfer.Lines[1].ProductID, transfer.FromStoreID}] =
		apperror.NewInsufficientStock(transfer.Lines[1].ProductID.String(), transfer.FromStoreID.String(), "4", "0")

	err := svc.Execute(ctx, transfer)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// nothing committed: not the first line's movements, not the document
	assert.Empty(t, manager.committed.posted)
	assert.Empty(t, manager.committed.transfers)
}

func TestExecuteValidation(t *testing.T) {
	manager := newRecordingTxManager()
	svc := NewService(txRepo{}, &txPoster{failAt: make(map[pairID]error)}, manager)
	ctx := context.Background()

	t.Run("same store on both sides", func(t *testing.T) {
		storeID := id.New()
		transfer := NewTransfer("TR-002", "tester", storeID, storeID)
		transfer.AddLine(id.New(), types.MustQuantity("1"))
		require.Error(t, svc.Execute(ctx, transfer))
	})

	t.Run("no lines", func(t *testing.T) {
		transfer := newTestTransfer(0)
		err := svc.Execute(ctx, transfer)
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeEmptyDocument, appErr.Code)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		transfer := newTestTransfer(0)
		transfer.Lines = append(transfer.Lines, Line{LineID: id.New(), LineNo: 1, ProductID: id.New(), Quantity: types.Zero()})
		require.Error(t, svc.Execute(ctx, transfer))
	})

	t.Run("duplicate product", func(t *testing.T) {
		// two lines for one product would collide on the ledger reference
		// and abort the whole transfer mid-flight
		productID := id.New()
		transfer := newTestTransfer(0)
		transfer.AddLine(productID, types.MustQuantity("2"))
		transfer.AddLine(productID, types.MustQuantity("3"))

		err := svc.Execute(ctx, transfer)
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
	})

	assert.Empty(t, manager.committed.posted)
}
