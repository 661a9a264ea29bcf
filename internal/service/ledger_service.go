package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"
	"inventory-ledger/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher publishes ledger events once a transaction has committed
type EventPublisher interface {
	PublishSaleCommitted(ctx context.Context, event *models.SaleCommittedEvent) error
	PublishItemReturned(ctx context.Context, event *models.ItemReturnedEvent) error
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
}

// LedgerService turns carts into sales and processes returns, keeping
// on-hand stock consistent with both
type LedgerService struct {
	store             *store.Store
	eventPublisher    EventPublisher
	lowStockThreshold int
	logger            *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store *store.Store, eventPublisher EventPublisher, lowStockThreshold int) *LedgerService {
	return &LedgerService{
		store:             store,
		eventPublisher:    eventPublisher,
		lowStockThreshold: lowStockThreshold,
		logger:            util.GetLogger(),
	}
}

// CommitResult is what a successful commit hands back to the caller
type CommitResult struct {
	Sale     *models.Sale            `json:"sale"`
	Totals   Totals                  `json:"totals"`
	LowStock []models.LowStockNotice `json:"low_stock"`
}

// Commit converts a cart into a sale. Either every line becomes a sale line
// and every product is decremented, or nothing changes and the cart is left
// as it was.
func (s *LedgerService) Commit(ctx context.Context, principalID, cartID int64) (*CommitResult, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.Commit")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CommitLatency.Observe(time.Since(start).Seconds())
	}()

	result := &CommitResult{LowStock: []models.LowStockNotice{}}
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		cart, err := tx.GetCart(ctx, principalID, cartID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		requested := cart.RequestedByProduct()
		products, err := s.checkAvailability(ctx, tx, principalID, requested)
		if err != nil {
			return err
		}

		number, err := tx.NextSaleNumber(ctx, principalID)
		if err != nil {
			return err
		}

		sale := &models.Sale{OwnerID: principalID, Number: number}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		sale.Items = make([]models.SaleItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			item := models.SaleItem{
				SaleID:      sale.ID,
				ProductID:   line.ProductID,
				Quantity:    line.Quantity,
				BaseTotal:   line.BaseTotal(),
				ActualTotal: line.ActualTotal(),
			}
			if err := tx.CreateSaleItem(ctx, &item); err != nil {
				return fmt.Errorf("failed to create sale item: %w", err)
			}
			sale.Items = append(sale.Items, item)
		}

		// products is ordered by id so concurrent commits lock rows in the same order
		for _, product := range products {
			qty := requested[product.ID]
			ok, err := tx.DecrementStock(ctx, product.ID, qty)
			if err != nil {
				return err
			}

			remaining, err := tx.GetQuantity(ctx, product.ID)
			if err != nil {
				return err
			}
			if !ok {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   qty,
					Available:   remaining,
				}
			}

			if remaining < s.lowStockThreshold {
				result.LowStock = append(result.LowStock, models.LowStockNotice{
					ProductID:   product.ID,
					ProductName: product.Name,
					Remaining:   remaining,
				})
			}
		}

		sale.Comments = make([]models.SaleComment, 0, len(cart.Comments))
		for _, c := range cart.Comments {
			comment := models.SaleComment{
				SaleID:    sale.ID,
				AuthorID:  c.AuthorID,
				Body:      c.Body,
				CreatedAt: c.CreatedAt,
			}
			if err := tx.CreateSaleComment(ctx, &comment); err != nil {
				return fmt.Errorf("failed to copy cart comment: %w", err)
			}
			sale.Comments = append(sale.Comments, comment)
		}

		if err := tx.DeleteCart(ctx, cart.ID); err != nil {
			return err
		}

		result.Sale = sale
		result.Totals = CalculateTotals(cart)

		return recordAudit(ctx, tx, principalID, models.ActionSale,
			"Sale #%d created: %d line(s), total %s", sale.Number, len(sale.Items), result.Totals.Actual.StringFixed(2))
	})
	if err != nil {
		util.CommitsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.logger.Warn("Commit rejected",
			zap.Int64("cart_id", cartID),
			zap.Int64("owner_id", principalID),
			zap.Error(err))
		return nil, err
	}

	util.SalesCommittedTotal.Inc()
	util.LowStockNoticesTotal.Add(float64(len(result.LowStock)))
	s.logger.Info("Sale committed",
		zap.Int64("sale_id", result.Sale.ID),
		zap.Int64("sale_number", result.Sale.Number),
		zap.Int64("owner_id", principalID),
		zap.Int("low_stock", len(result.LowStock)))

	s.publishCommit(ctx, result)
	return result, nil
}

// checkAvailability loads every product of the cart and rejects the commit
// before any write if one of them cannot cover its grouped quantity
func (s *LedgerService) checkAvailability(ctx context.Context, tx *store.Tx, principalID int64, requested map[int64]int) ([]models.Product, error) {
	ids := make([]int64, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := tx.GetProductsByIDs(ctx, principalID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	if len(products) != len(ids) {
		return nil, fmt.Errorf("cart references an unknown product: %w", ErrNotFound)
	}

	for _, product := range products {
		if product.Archived() {
			return nil, Violations{"product_id": fmt.Sprintf("product %d is archived", product.ID)}.Err()
		}
		if requested[product.ID] > product.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   requested[product.ID],
				Available:   product.Quantity,
			}
		}
	}
	return products, nil
}

func (s *LedgerService) publishCommit(ctx context.Context, result *CommitResult) {
	sale := result.Sale
	items := make([]models.SaleItemData, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, models.SaleItemData{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			ActualTotal: item.ActualTotal,
		})
	}

	event := &models.SaleCommittedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeSaleCommitted),
		SaleID:      sale.ID,
		SaleNumber:  sale.Number,
		OwnerID:     sale.OwnerID,
		BaseTotal:   result.Totals.Base,
		ActualTotal: result.Totals.Actual,
		Items:       items,
	}
	if err := s.eventPublisher.PublishSaleCommitted(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleCommitted event", zap.Int64("sale_id", sale.ID), zap.Error(err))
	}

	for _, notice := range result.LowStock {
		lowStock := &models.LowStockEvent{
			BaseEvent: newBaseEvent(models.EventTypeLowStock),
			OwnerID:   sale.OwnerID,
			SaleID:    sale.ID,
			Notice:    notice,
		}
		if err := s.eventPublisher.PublishLowStock(ctx, lowStock); err != nil {
			s.logger.Error("Failed to publish LowStock event", zap.Int64("product_id", notice.ProductID), zap.Error(err))
		}
	}
}

// ReturnItem takes back part of a sale line. The return record, the line
// adjustment and the stock increment commit together.
func (s *LedgerService) ReturnItem(ctx context.Context, principalID, saleID, saleItemID int64, quantity int) (*models.Return, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ReturnItem")
	defer span.End()

	v := Violations{}
	positiveInt("quantity", quantity, v)
	if err := v.Err(); err != nil {
		util.ReturnsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	var ret *models.Return
	var remaining int
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetSale(ctx, principalID, saleID); err != nil {
			return err
		}

		item, err := tx.GetSaleItem(ctx, saleID, saleItemID)
		if err != nil {
			return err
		}
		if quantity > item.Quantity {
			return &OverReturnError{SaleItemID: item.ID, Requested: quantity, Remaining: item.Quantity}
		}

		product, err := tx.GetProduct(ctx, principalID, item.ProductID)
		if err != nil {
			return err
		}

		ret = &models.Return{
			SaleID:      saleID,
			SaleItemID:  item.ID,
			ProductID:   item.ProductID,
			Quantity:    quantity,
			PrincipalID: principalID,
		}
		if err := tx.CreateReturn(ctx, ret); err != nil {
			return fmt.Errorf("failed to create return: %w", err)
		}

		remaining = item.Quantity - quantity
		var applied bool
		if remaining == 0 {
			applied, err = tx.DeleteSaleItem(ctx, item.ID, item.Quantity)
		} else {
			base, actual := rescaleTotals(item, remaining, product.SellingPrice)
			applied, err = tx.ShrinkSaleItem(ctx, item.ID, item.Quantity, remaining, base, actual)
		}
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("sale item %d: %w", item.ID, ErrConflict)
		}

		if err := tx.IncrementStock(ctx, item.ProductID, quantity); err != nil {
			return err
		}

		return recordAudit(ctx, tx, principalID, models.ActionReturn,
			"Return of %d x %s against sale item %d (%d left)", quantity, product.Name, item.ID, remaining)
	})
	if err != nil {
		util.ReturnsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.logger.Warn("Return rejected",
			zap.Int64("sale_id", saleID),
			zap.Int64("sale_item_id", saleItemID),
			zap.Int("quantity", quantity),
			zap.Error(err))
		return nil, err
	}

	util.ReturnsProcessedTotal.Inc()
	s.logger.Info("Return processed",
		zap.Int64("return_id", ret.ID),
		zap.Int64("sale_item_id", saleItemID),
		zap.Int("quantity", quantity),
		zap.Int("remaining", remaining))

	event := &models.ItemReturnedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeItemReturned),
		ReturnID:   ret.ID,
		SaleID:     saleID,
		SaleItemID: saleItemID,
		ProductID:  ret.ProductID,
		Quantity:   quantity,
		Remaining:  remaining,
		OwnerID:    principalID,
	}
	if err := s.eventPublisher.PublishItemReturned(ctx, event); err != nil {
		s.logger.Error("Failed to publish ItemReturned event", zap.Int64("return_id", ret.ID), zap.Error(err))
	}

	return ret, nil
}

// rescaleTotals recomputes a partly returned line. The base total follows
// the current list price; the actual total keeps the unit price that was
// charged.
func rescaleTotals(item *models.SaleItem, remaining int, sellingPrice decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	left := decimal.NewFromInt(int64(remaining))
	base := sellingPrice.Mul(left)
	actual := item.ActualTotal.Mul(left).Div(decimal.NewFromInt(int64(item.Quantity))).Round(2)
	return base, actual
}

// GetSale retrieves a sale with its remaining lines and comments
func (s *LedgerService) GetSale(ctx context.Context, principalID, saleID int64) (*models.Sale, error) {
	return s.store.GetSale(ctx, principalID, saleID)
}

// ListSales lists the most recent sales of principalID
func (s *LedgerService) ListSales(ctx context.Context, principalID int64, limit int) ([]models.Sale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.GetSalesByOwner(ctx, principalID, limit)
}

// ListReturns lists every return recorded against a sale
func (s *LedgerService) ListReturns(ctx context.Context, principalID, saleID int64) ([]models.Return, error) {
	if _, err := s.store.GetSale(ctx, principalID, saleID); err != nil {
		return nil, err
	}
	return s.store.GetReturnsBySale(ctx, saleID)
}

// AddSaleComment attaches a note to an existing sale
func (s *LedgerService) AddSaleComment(ctx context.Context, principalID, saleID int64, body string) (*models.SaleComment, error) {
	v := Violations{}
	required("body", body, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	comment := &models.SaleComment{SaleID: saleID, AuthorID: principalID, Body: body}
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetSale(ctx, principalID, saleID); err != nil {
			return err
		}
		return tx.CreateSaleComment(ctx, comment)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
