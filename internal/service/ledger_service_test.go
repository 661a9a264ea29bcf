package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitRejectsOverRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, owner, "Core i9", 10, "100")
	cart := f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 12})

	_, err := f.ledger.Commit(ctx, owner, cart.ID)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.Equal(t, p.ID, stockErr.ProductID)
	assert.Equal(t, 12, stockErr.Requested)
	assert.Equal(t, 10, stockErr.Available)

	assert.Equal(t, 10, f.quantity(t, p.ID))
	assert.Equal(t, 0, f.saleCount(t, owner))

	kept, err := f.carts.GetCart(ctx, owner, cart.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Items, 1)
	assert.Empty(t, f.publisher.committed)
}

// commitOverride sells 2 units of a 10-unit product listed at 100 for 90 each
func commitOverride(t *testing.T, f *fixture) (*models.Product, *CommitResult) {
	t.Helper()

	p := f.product(t, owner, "Core i9", 10, "100")
	cart := f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 2, ActualPrice: moneyPtr("90")})

	result, err := f.ledger.Commit(context.Background(), owner, cart.ID)
	require.NoError(t, err)
	return p, result
}

func TestCommitWithPriceOverride(t *testing.T) {
	f := newFixture(t)
	p, result := commitOverride(t, f)

	require.Len(t, result.Sale.Items, 1)
	item := result.Sale.Items[0]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 2, item.OriginalQuantity)
	assert.True(t, item.BaseTotal.Equal(money("200")), "base %s", item.BaseTotal)
	assert.True(t, item.ActualTotal.Equal(money("180")), "actual %s", item.ActualTotal)
	assert.True(t, result.Totals.Base.Equal(money("200")))
	assert.True(t, result.Totals.Actual.Equal(money("180")))
	assert.Equal(t, int64(1), result.Sale.Number)

	assert.Equal(t, 8, f.quantity(t, p.ID))
	assert.Empty(t, result.LowStock)

	stored, err := f.ledger.GetSale(context.Background(), owner, result.Sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].ActualTotal.Equal(money("180")))

	require.Len(t, f.publisher.committed, 1)
	assert.Equal(t, result.Sale.ID, f.publisher.committed[0].SaleID)
	assert.Equal(t, models.EventTypeSaleCommitted, f.publisher.committed[0].EventType)
}

func TestPartialThenFullReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, result := commitOverride(t, f)
	saleID := result.Sale.ID
	itemID := result.Sale.Items[0].ID

	ret, err := f.ledger.ReturnItem(ctx, owner, saleID, itemID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ret.Quantity)
	assert.Equal(t, p.ID, ret.ProductID)

	sale, err := f.ledger.GetSale(ctx, owner, saleID)
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	line := sale.Items[0]
	assert.Equal(t, 1, line.Quantity)
	assert.True(t, line.BaseTotal.Equal(money("100")), "base %s", line.BaseTotal)
	assert.True(t, line.ActualTotal.Equal(money("90")), "actual %s", line.ActualTotal)
	assert.Equal(t, 9, f.quantity(t, p.ID))

	returned, err := f.store.ReturnedQuantity(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, line.OriginalQuantity, line.Quantity+returned)

	_, err = f.ledger.ReturnItem(ctx, owner, saleID, itemID, 1)
	require.NoError(t, err)

	sale, err = f.ledger.GetSale(ctx, owner, saleID)
	require.NoError(t, err)
	assert.Empty(t, sale.Items)
	assert.Equal(t, 10, f.quantity(t, p.ID))

	returns, err := f.ledger.ListReturns(ctx, owner, saleID)
	require.NoError(t, err)
	assert.Len(t, returns, 2)

	_, err = f.ledger.ReturnItem(ctx, owner, saleID, itemID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Len(t, f.publisher.returned, 2)
	assert.Equal(t, 0, f.publisher.returned[1].Remaining)
}

func TestOverReturnLeavesRecordsUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, result := commitOverride(t, f)
	item := result.Sale.Items[0]

	_, err := f.ledger.ReturnItem(ctx, owner, result.Sale.ID, item.ID, 3)

	var overErr *OverReturnError
	require.True(t, errors.As(err, &overErr), "got %v", err)
	assert.Equal(t, 3, overErr.Requested)
	assert.Equal(t, 2, overErr.Remaining)

	assert.Equal(t, 8, f.quantity(t, p.ID))
	returns, err := f.ledger.ListReturns(ctx, owner, result.Sale.ID)
	require.NoError(t, err)
	assert.Empty(t, returns)

	sale, err := f.ledger.GetSale(ctx, owner, result.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sale.Items[0].Quantity)
	assert.True(t, sale.Items[0].ActualTotal.Equal(money("180")))
}

func TestConcurrentCommitsSellOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, owner, "Last unit", 1, "100")
	carts := []*models.Cart{
		f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 1}),
		f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 1}),
	}

	errs := make([]error, len(carts))
	var wg sync.WaitGroup
	for i, c := range carts {
		wg.Add(1)
		go func(i int, cartID int64) {
			defer wg.Done()
			_, errs[i] = f.ledger.Commit(ctx, owner, cartID)
		}(i, c.ID)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		var stockErr *InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &stockErr):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, f.quantity(t, p.ID))
	assert.Equal(t, 1, f.saleCount(t, owner))
}

func TestCommitIsAtomicAcrossProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plenty := f.product(t, owner, "Plenty", 10, "10")
	scarce := f.product(t, owner, "Scarce", 1, "20")
	cart := f.cartWith(t, owner,
		AddItemRequest{ProductID: plenty.ID, Quantity: 3},
		AddItemRequest{ProductID: scarce.ID, Quantity: 2},
	)

	_, err := f.ledger.Commit(ctx, owner, cart.ID)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.Equal(t, scarce.ID, stockErr.ProductID)

	assert.Equal(t, 10, f.quantity(t, plenty.ID))
	assert.Equal(t, 1, f.quantity(t, scarce.ID))
	assert.Equal(t, 0, f.saleCount(t, owner))
}

func TestCommitChecksMergedQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, owner, "Core i9", 6, "100")
	cart := f.cartWith(t, owner,
		AddItemRequest{ProductID: p.ID, Quantity: 3},
		AddItemRequest{ProductID: p.ID, Quantity: 4},
	)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)

	_, err := f.ledger.Commit(ctx, owner, cart.ID)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.Equal(t, 7, stockErr.Requested)
	assert.Equal(t, 6, f.quantity(t, p.ID))
}

func TestCommitEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.carts.CreateCart(ctx, owner)
	require.NoError(t, err)

	_, err = f.ledger.Commit(ctx, owner, cart.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, f.saleCount(t, owner))
}

func TestCommitRaisesLowStockStrictlyBelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	low := f.product(t, owner, "Ryzen", 6, "50")
	edge := f.product(t, owner, "Xeon", 7, "80")
	cart := f.cartWith(t, owner,
		AddItemRequest{ProductID: low.ID, Quantity: 2},
		AddItemRequest{ProductID: edge.ID, Quantity: 2},
	)

	result, err := f.ledger.Commit(ctx, owner, cart.ID)
	require.NoError(t, err)

	require.Len(t, result.LowStock, 1)
	assert.Equal(t, models.LowStockNotice{ProductID: low.ID, ProductName: "Ryzen", Remaining: 4}, result.LowStock[0])

	require.Len(t, f.publisher.lowStock, 1)
	assert.Equal(t, owner, f.publisher.lowStock[0].OwnerID)
	assert.Equal(t, result.Sale.ID, f.publisher.lowStock[0].SaleID)
}

func TestCommitMovesCommentsAndDeletesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, owner, "Core i9", 10, "100")
	cart := f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 1})
	comment, err := f.carts.AddComment(ctx, owner, cart.ID, "customer pays on delivery")
	require.NoError(t, err)

	result, err := f.ledger.Commit(ctx, owner, cart.ID)
	require.NoError(t, err)

	sale, err := f.ledger.GetSale(ctx, owner, result.Sale.ID)
	require.NoError(t, err)
	require.Len(t, sale.Comments, 1)
	assert.Equal(t, "customer pays on delivery", sale.Comments[0].Body)
	assert.Equal(t, owner, sale.Comments[0].AuthorID)
	assert.WithinDuration(t, comment.CreatedAt, sale.Comments[0].CreatedAt, time.Second)

	_, err = f.carts.GetCart(ctx, owner, cart.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaleNumbersArePerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const other int64 = 2

	mine := f.product(t, owner, "Mine", 10, "10")
	theirs := f.product(t, other, "Theirs", 10, "10")

	var numbers []int64
	for i := 0; i < 2; i++ {
		cart := f.cartWith(t, owner, AddItemRequest{ProductID: mine.ID, Quantity: 1})
		result, err := f.ledger.Commit(ctx, owner, cart.ID)
		require.NoError(t, err)
		numbers = append(numbers, result.Sale.Number)
	}
	assert.Equal(t, []int64{1, 2}, numbers)

	cart := f.cartWith(t, other, AddItemRequest{ProductID: theirs.ID, Quantity: 1})
	result, err := f.ledger.Commit(ctx, other, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Sale.Number)
}

func TestLedgerTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const intruder int64 = 2

	_, result := commitOverride(t, f)

	_, err := f.ledger.GetSale(ctx, intruder, result.Sale.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.ReturnItem(ctx, intruder, result.Sale.ID, result.Sale.Items[0].ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.ListReturns(ctx, intruder, result.Sale.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.AddSaleComment(ctx, intruder, result.Sale.ID, "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	p := f.product(t, owner, "Other", 5, "10")
	cart := f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 1})
	_, err = f.ledger.Commit(ctx, intruder, cart.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 5, f.quantity(t, p.ID))
}

func TestCommitRejectsArchivedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, owner, "Old stock", 10, "100")
	cart := f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 1})
	_, err := f.catalog.Archive(ctx, owner, p.ID)
	require.NoError(t, err)

	_, err = f.ledger.Commit(ctx, owner, cart.ID)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr), "got %v", err)
	assert.Contains(t, validationErr.Violations, "product_id")
	assert.Equal(t, 10, f.quantity(t, p.ID))
}

func TestCommitSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	p, result := commitOverride(t, f)
	assert.NotNil(t, result.Sale)
	assert.Equal(t, 8, f.quantity(t, p.ID))
}

func TestReturnRescalesAndRounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, owner, "Cable", 10, "40")
	cart := f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 3, ActualPrice: moneyPtr("33.33")})
	result, err := f.ledger.Commit(ctx, owner, cart.ID)
	require.NoError(t, err)
	require.True(t, result.Sale.Items[0].ActualTotal.Equal(money("99.99")))

	_, err = f.ledger.ReturnItem(ctx, owner, result.Sale.ID, result.Sale.Items[0].ID, 1)
	require.NoError(t, err)

	sale, err := f.ledger.GetSale(ctx, owner, result.Sale.ID)
	require.NoError(t, err)
	assert.True(t, sale.Items[0].ActualTotal.Equal(money("66.66")), "actual %s", sale.Items[0].ActualTotal)
	assert.True(t, sale.Items[0].BaseTotal.Equal(money("80")), "base %s", sale.Items[0].BaseTotal)
}

func TestReturnValidatesQuantity(t *testing.T) {
	f := newFixture(t)
	_, result := commitOverride(t, f)

	_, err := f.ledger.ReturnItem(context.Background(), owner, result.Sale.ID, result.Sale.Items[0].ID, 0)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr), "got %v", err)
	assert.Equal(t, "must_be_positive", validationErr.Violations["quantity"])
}

func TestLedgerWritesAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, result := commitOverride(t, f)

	_, err := f.ledger.ReturnItem(ctx, owner, result.Sale.ID, result.Sale.Items[0].ID, 1)
	require.NoError(t, err)

	sales, err := f.audit.ListLogEntries(ctx, store.LogFilter{ActionType: models.ActionSale})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Contains(t, sales[0].Message, "Sale #1")

	returns, err := f.audit.ListLogEntries(ctx, store.LogFilter{ActionType: models.ActionReturn})
	require.NoError(t, err)
	require.Len(t, returns, 1)
	require.NotNil(t, returns[0].PrincipalID)
	assert.Equal(t, owner, *returns[0].PrincipalID)
}

func TestListSalesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, owner, "Core i9", 10, "100")

	for i := 0; i < 3; i++ {
		cart := f.cartWith(t, owner, AddItemRequest{ProductID: p.ID, Quantity: 1})
		_, err := f.ledger.Commit(ctx, owner, cart.ID)
		require.NoError(t, err)
	}

	sales, err := f.ledger.ListSales(ctx, owner, 2)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, int64(3), sales[0].Number)
}

func TestRescaleTotals(t *testing.T) {
	item := &models.SaleItem{Quantity: 2, ActualTotal: money("180")}
	base, actual := rescaleTotals(item, 1, money("100"))
	assert.True(t, base.Equal(money("100")))
	assert.True(t, actual.Equal(money("90")))
}
