package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const owner int64 = 1

type fakePublisher struct {
	mu        sync.Mutex
	committed []*models.SaleCommittedEvent
	returned  []*models.ItemReturnedEvent
	lowStock  []*models.LowStockEvent
	err       error
}

func (f *fakePublisher) PublishSaleCommitted(ctx context.Context, event *models.SaleCommittedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, event)
	return f.err
}

func (f *fakePublisher) PublishItemReturned(ctx context.Context, event *models.ItemReturnedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returned = append(f.returned, event)
	return f.err
}

func (f *fakePublisher) PublishLowStock(ctx context.Context, event *models.LowStockEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lowStock = append(f.lowStock, event)
	return f.err
}

type fixture struct {
	store     *store.Store
	publisher *fakePublisher
	carts     *CartService
	ledger    *LedgerService
	catalog   *CatalogService
	audit     *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_foreign_keys=on&_busy_timeout=5000"
	s, err := store.NewStore("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	pub := &fakePublisher{}
	return &fixture{
		store:     s,
		publisher: pub,
		carts:     NewCartService(s),
		ledger:    NewLedgerService(s, pub, 5),
		catalog:   NewCatalogService(s),
		audit:     NewAuditService(s),
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func (f *fixture) product(t *testing.T, ownerID int64, name string, quantity int, price string) *models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), ownerID, &CreateProductRequest{
		Name:         name,
		Quantity:     quantity,
		SellingPrice: money(price),
	})
	require.NoError(t, err)
	return p
}

// cartWith opens a cart for ownerID holding one line per request
func (f *fixture) cartWith(t *testing.T, ownerID int64, reqs ...AddItemRequest) *models.Cart {
	t.Helper()
	ctx := context.Background()

	cart, err := f.carts.CreateCart(ctx, ownerID)
	require.NoError(t, err)
	for i := range reqs {
		cart, err = f.carts.AddItem(ctx, ownerID, cart.ID, &reqs[i])
		require.NoError(t, err)
	}
	return cart
}

func (f *fixture) quantity(t *testing.T, productID int64) int {
	t.Helper()
	q, err := f.store.GetQuantity(context.Background(), productID)
	require.NoError(t, err)
	return q
}

func (f *fixture) saleCount(t *testing.T, ownerID int64) int {
	t.Helper()
	sales, err := f.store.GetSalesByOwner(context.Background(), ownerID, 1000)
	require.NoError(t, err)
	return len(sales)
}
