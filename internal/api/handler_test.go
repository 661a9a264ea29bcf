package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/service"
	"inventory-ledger/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopPublisher struct{}

func (nopPublisher) PublishSaleCommitted(ctx context.Context, event *models.SaleCommittedEvent) error {
	return nil
}

func (nopPublisher) PublishItemReturned(ctx context.Context, event *models.ItemReturnedEvent) error {
	return nil
}

func (nopPublisher) PublishLowStock(ctx context.Context, event *models.LowStockEvent) error {
	return nil
}

type stubNotices struct {
	notices map[int64][]models.LowStockNotice
	err     error
}

func (s *stubNotices) DrainNotices(ctx context.Context, ownerID int64) ([]models.LowStockNotice, error) {
	if s.err != nil {
		return nil, s.err
	}
	n := s.notices[ownerID]
	delete(s.notices, ownerID)
	return n, nil
}

type testServer struct {
	router  *gin.Engine
	notices *stubNotices
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_foreign_keys=on&_busy_timeout=5000"
	s, err := store.NewStore("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	notices := &stubNotices{notices: map[int64][]models.LowStockNotice{}}
	h := NewHandler(
		service.NewCartService(s),
		service.NewLedgerService(s, nopPublisher{}, 5),
		service.NewCatalogService(s),
		service.NewAuditService(s),
		notices,
	)
	h.AddReadinessCheck("database", s.Ping)

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, notices: notices}
}

func (ts *testServer) do(t *testing.T, method, path string, principal int64, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != 0 {
		req.Header.Set(PrincipalHeader, fmt.Sprint(principal))
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func (ts *testServer) createProduct(t *testing.T, principal int64, name string, qty int, price string) models.Product {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/products", principal, gin.H{
		"name":          name,
		"quantity":      qty,
		"selling_price": price,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p models.Product
	decode(t, w, &p)
	return p
}

func (ts *testServer) createCart(t *testing.T, principal int64) cartResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/carts", principal, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var c cartResponse
	decode(t, w, &c)
	return c
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", 0, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/ready", 0, nil).Code)
}

func TestReadyReportsFailedCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, nil, nil)
	h.AddReadinessCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	router := gin.New()
	h.SetupRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMissingPrincipal(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/sales", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	req.Header.Set(PrincipalHeader, "abc")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	const me int64 = 1

	p := ts.createProduct(t, me, "Core i9", 6, "100")
	cart := ts.createCart(t, me)

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/items", cart.Cart.ID), me, gin.H{
		"product_id":   p.ID,
		"quantity":     2,
		"actual_price": "90",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var withItem cartResponse
	decode(t, w, &withItem)
	assert.True(t, withItem.Totals.Actual.Equal(decimal.NewFromInt(180)))

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/commit", cart.Cart.ID), me, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result service.CommitResult
	decode(t, w, &result)
	require.Len(t, result.Sale.Items, 1)
	assert.True(t, result.Sale.Items[0].BaseTotal.Equal(decimal.NewFromInt(200)))
	require.Len(t, result.LowStock, 1)
	assert.Equal(t, 4, result.LowStock[0].Remaining)

	item := result.Sale.Items[0]
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sales/%d/items/%d/returns", result.Sale.ID, item.ID), me, gin.H{"quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sales/%d/items/%d/returns", result.Sale.ID, item.ID), me, gin.H{"quantity": 5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining":1`)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sales/%d/returns", result.Sale.ID), me, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var returns struct {
		Returns []models.Return `json:"returns"`
	}
	decode(t, w, &returns)
	assert.Len(t, returns.Returns, 1)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", p.ID), me, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after models.Product
	decode(t, w, &after)
	assert.Equal(t, 5, after.Quantity)

	w = ts.do(t, http.MethodGet, "/api/v1/logs?action=SALE", me, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Logs []models.LogEntry `json:"logs"`
	}
	decode(t, w, &logs)
	assert.Len(t, logs.Logs, 1)
}

func TestCommitErrors(t *testing.T) {
	ts := newTestServer(t)
	const me int64 = 1

	empty := ts.createCart(t, me)
	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/commit", empty.Cart.ID), me, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Cart is empty")

	p := ts.createProduct(t, me, "Core i9", 1, "100")
	cart := ts.createCart(t, me)
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/items", cart.Cart.ID), me, gin.H{"product_id": p.ID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/commit", cart.Cart.ID), me, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"available":1`)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/commit", cart.Cart.ID), 2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationAndBadInput(t *testing.T) {
	ts := newTestServer(t)
	const me int64 = 1
	cart := ts.createCart(t, me)

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/items", cart.Cart.ID), me, gin.H{"product_id": 1, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "must_be_positive")

	w = ts.do(t, http.MethodGet, "/api/v1/carts/abc", me, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/warehouses", bytes.NewBufferString("{"))
	req.Header.Set(PrincipalHeader, "1")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelCartAndComments(t *testing.T) {
	ts := newTestServer(t)
	const me int64 = 1
	cart := ts.createCart(t, me)

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/comments", cart.Cart.ID), me, gin.H{"body": "call back"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/carts", me, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/carts/%d", cart.Cart.ID), me, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/carts/%d", cart.Cart.ID), me, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogRoutes(t *testing.T) {
	ts := newTestServer(t)
	const me int64 = 1

	w := ts.do(t, http.MethodPost, "/api/v1/warehouses", me, gin.H{"name": "Main"})
	require.Equal(t, http.StatusCreated, w.Code)

	p := ts.createProduct(t, me, "Core i9", 1, "100")

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/products/%d/restock", p.ID), me, gin.H{"quantity": 4})
	require.Equal(t, http.StatusOK, w.Code)
	var restocked models.Product
	decode(t, w, &restocked)
	assert.Equal(t, 5, restocked.Quantity)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/products/%d/archive", p.ID), me, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var archived models.Product
	decode(t, w, &archived)
	assert.NotNil(t, archived.ArchivedAt)

	w = ts.do(t, http.MethodGet, "/api/v1/products", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Products []models.Product `json:"products"`
	}
	decode(t, w, &list)
	assert.Empty(t, list.Products)
}

func TestDrainNotices(t *testing.T) {
	ts := newTestServer(t)
	ts.notices.notices[1] = []models.LowStockNotice{{ProductID: 3, ProductName: "Ryzen", Remaining: 2}}

	w := ts.do(t, http.MethodGet, "/api/v1/notices", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Notices []models.LowStockNotice `json:"notices"`
	}
	decode(t, w, &body)
	require.Len(t, body.Notices, 1)
	assert.Equal(t, "Ryzen", body.Notices[0].ProductName)

	w = ts.do(t, http.MethodGet, "/api/v1/notices", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notices":[]}`, w.Body.String())

	ts.notices.err = errors.New("redis down")
	w = ts.do(t, http.MethodGet, "/api/v1/notices", 1, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
