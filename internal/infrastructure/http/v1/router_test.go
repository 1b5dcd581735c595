package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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
	"optipos/internal/domain/ledger"
	"optipos/pkg/logger"

	"optipos/internal/infrastructure/http/v1/middleware"
)

// stubTxManager runs the callback directly. Lock semantics are covered by
// the ledger package tests, here we only care about the HTTP contract.
type stubTxManager struct{}

func (stubTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type pairKey struct {
	product id.ID
	store   id.ID
}

type refKey struct {
	refType string
	refID   id.ID
	pair    pairKey
}

// stubLedgerRepo is a minimal in-memory ledger.Repository.
type stubLedgerRepo struct {
	mu       sync.Mutex
	balances map[pairKey]*entity.InventoryBalance
	txns     []*entity.StockTransaction
	refs     map[refKey]bool
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{
		balances: make(map[pairKey]*entity.InventoryBalance),
		refs:     make(map[refKey]bool),
	}
}

func (r *stubLedgerRepo) EnsureBalanceForUpdate(_ context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{productID, storeID}
	if b, ok := r.balances[key]; ok {
		clone := *b
		return &clone, nil
	}
	b := &entity.InventoryBalance{
		ProductID:      productID,
		StoreID:        storeID,
		Quantity:       types.Zero(),
		StockAlert:     types.Zero(),
		DiscountMethod: entity.DiscountPercentage,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	r.balances[key] = b
	clone := *b
	return &clone, nil
}

func (r *stubLedgerRepo) ReferencePosted(_ context.Context, referenceType string, referenceID, productID, storeID id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[refKey{referenceType, referenceID, pairKey{productID, storeID}}], nil
}

func (r *stubLedgerRepo) CreateTransaction(_ context.Context, txn *entity.StockTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns = append(r.txns, txn)
	if txn.HasReference() {
		r.refs[refKey{*txn.ReferenceType, *txn.ReferenceID, pairKey{txn.ProductID, txn.StoreID}}] = true
	}
	return nil
}

func (r *stubLedgerRepo) UpdateBalanceQuantity(_ context.Context, productID, storeID id.ID, quantity types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[pairKey{productID, storeID}]
	if !ok {
		return apperror.NewNotFound("inventory balance", productID.String())
	}
	b.Quantity = quantity
	b.UpdatedAt = time.Now()
	return nil
}

func (r *stubLedgerRepo) UpdateBalanceSettings(_ context.Context, productID, storeID id.ID, settings entity.BalanceSettings) (*entity.InventoryBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[pairKey{productID, storeID}]
	if !ok {
		return nil, apperror.NewNotFound("inventory balance", productID.String())
	}
	b.StockAlert = settings.StockAlert
	b.DiscountMethod = settings.DiscountMethod
	b.DiscountRate = settings.DiscountRate
	b.IsActive = settings.IsActive
	b.UpdatedAt = time.Now()
	clone := *b
	return &clone, nil
}

func (r *stubLedgerRepo) GetBalance(_ context.Context, productID, storeID id.ID) (*entity.InventoryBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[pairKey{productID, storeID}]
	if !ok {
		return nil, apperror.NewNotFound("inventory balance", productID.String())
	}
	clone := *b
	return &clone, nil
}

func (r *stubLedgerRepo) ListBalances(_ context.Context, _ ledger.BalanceFilter) ([]*entity.InventoryBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.InventoryBalance, 0, len(r.balances))
	for _, b := range r.balances {
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (r *stubLedgerRepo) GetTransaction(_ context.Context, txnID id.ID) (*entity.StockTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.ID == txnID {
			clone := *txn
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("stock transaction", txnID.String())
}

func (r *stubLedgerRepo) ListTransactions(_ context.Context, _ ledger.TransactionFilter) ([]*entity.StockTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.StockTransaction, 0, len(r.txns))
	for _, txn := range r.txns {
		clone := *txn
		out = append(out, &clone)
	}
	return out, nil
}

type routerFixture struct {
	router    http.Handler
	token     string
	validator *middleware.TokenValidator
}

func newRouterFixture(t *testing.T) (*routerFixture, *stubLedgerRepo) {
	t.Helper()

	repo := newStubLedgerRepo()
	engine := ledger.NewService(repo, stubTxManager{}, nil)

	validator := middleware.NewTokenValidator("router-test-secret")
	token, err := validator.IssueToken(&appctx.Actor{
		ID:    "00000000-0000-0000-0000-000000000001",
		Email: "clerk@example.com",
		Roles: []string{"clerk"},
	}, time.Hour)
	require.NoError(t, err)

	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Logger:         log,
		TokenValidator: validator,
		Ledger:         engine,
	})

	return &routerFixture{router: router, token: token, validator: validator}, repo
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouterRequiresToken(t *testing.T) {
	fixture, _ := newRouterFixture(t)

	rec := fixture.do(t, http.MethodGet, "/api/v1/movements", nil, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, apperror.CodeUnauthorized, body["code"])

	// garbage token is rejected too
	req := httptest.NewRequest(http.MethodGet, "/api/v1/movements", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	fixture.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterMovementLifecycle(t *testing.T) {
	fixture, repo := newRouterFixture(t)

	productID := id.New().String()
	storeID := id.New().String()

	rec := fixture.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"productId":    productID,
		"storeId":      storeID,
		"quantity":     "10",
		"movementType": "RECEIPT",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "10", created["balanceAfter"])
	assert.Equal(t, "RECEIPT", created["movementType"])

	// the materialized balance reflects the posting
	rec = fixture.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/balances/%s/%s", productID, storeID), nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var balance map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.Equal(t, "10", balance["quantity"])

	require.Len(t, repo.txns, 1)
}

func TestRouterInsufficientStock(t *testing.T) {
	fixture, _ := newRouterFixture(t)

	productID := id.New().String()
	storeID := id.New().String()

	rec := fixture.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"productId":    productID,
		"storeId":      storeID,
		"quantity":     "-5",
		"movementType": "ISSUE",
	}, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	body := decodeError(t, rec)
	assert.Equal(t, apperror.CodeInsufficientStock, body["code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0", details["available"])
}

func TestRouterValidationErrors(t *testing.T) {
	fixture, _ := newRouterFixture(t)

	t.Run("malformed id", func(t *testing.T) {
		rec := fixture.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
			"productId":    "not-a-uuid",
			"storeId":      id.New().String(),
			"quantity":     "1",
			"movementType": "RECEIPT",
		}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperror.CodeValidation, decodeError(t, rec)["code"])
	})

	t.Run("wrong sign for movement type", func(t *testing.T) {
		rec := fixture.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
			"productId":    id.New().String(),
			"storeId":      id.New().String(),
			"quantity":     "-1",
			"movementType": "RECEIPT",
		}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperror.CodeInvalidMovement, decodeError(t, rec)["code"])
	})

	t.Run("missing body fields", func(t *testing.T) {
		rec := fixture.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
			"productId": id.New().String(),
		}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperror.CodeValidation, decodeError(t, rec)["code"])
	})
}

func TestRouterLedgerEntriesAreImmutable(t *testing.T) {
	fixture, _ := newRouterFixture(t)

	target := "/api/v1/movements/" + id.New().String()
	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rec := fixture.do(t, method, target, map[string]any{"quantity": "99"}, true)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)

		body := decodeError(t, rec)
		assert.Equal(t, apperror.CodeMethodNotAllowed, body["code"], method)
		assert.Contains(t, body["message"], "append-only", method)
	}
}

func TestRouterHealthIsPublic(t *testing.T) {
	fixture, _ := newRouterFixture(t)

	rec := fixture.do(t, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}
