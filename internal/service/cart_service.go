package service

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"
	"inventory-ledger/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService manages carts before they are committed. Nothing here touches
// stock: availability is only checked by LedgerService.Commit.
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddItemRequest represents a product added to a cart
type AddItemRequest struct {
	ProductID   int64            `json:"product_id"`
	Quantity    int              `json:"quantity"`
	ActualPrice *decimal.Decimal `json:"actual_price,omitempty"`
}

// Totals holds the list-price and negotiated-price sums of a cart
type Totals struct {
	Base   decimal.Decimal `json:"base_total"`
	Actual decimal.Decimal `json:"actual_total"`
}

// CalculateTotals sums base and actual totals over every line of the cart
func CalculateTotals(cart *models.Cart) Totals {
	base, actual := cart.Totals()
	return Totals{Base: base, Actual: actual}
}

// CreateCart opens a new empty cart for principalID
func (s *CartService) CreateCart(ctx context.Context, principalID int64) (*models.Cart, error) {
	cart := &models.Cart{
		OwnerID:  principalID,
		Items:    []models.CartItem{},
		Comments: []models.CartComment{},
	}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	s.logger.Debug("Cart created", zap.Int64("cart_id", cart.ID), zap.Int64("owner_id", principalID))
	return cart, nil
}

// GetCart retrieves a cart of principalID
func (s *CartService) GetCart(ctx context.Context, principalID, cartID int64) (*models.Cart, error) {
	return s.store.GetCart(ctx, principalID, cartID)
}

// ListCarts lists the open carts of principalID
func (s *CartService) ListCarts(ctx context.Context, principalID int64) ([]models.Cart, error) {
	return s.store.GetCartsByOwner(ctx, principalID)
}

// AddItem puts a product into a cart. A product already in the cart is
// merged into its existing line: quantities add up and the price given now
// applies to the combined quantity. Without an ActualPrice the product's
// current selling price is used.
func (s *CartService) AddItem(ctx context.Context, principalID, cartID int64, req *AddItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	v := Violations{}
	positiveID("product_id", req.ProductID, v)
	positiveInt("quantity", req.Quantity, v)
	optionalNonNegativeMoney("actual_price", req.ActualPrice, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var cart *models.Cart
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCart(ctx, principalID, cartID); err != nil {
			return err
		}

		product, err := tx.GetProduct(ctx, principalID, req.ProductID)
		if err != nil {
			return err
		}
		if product.Archived() {
			return Violations{"product_id": "archived"}.Err()
		}

		actual := product.SellingPrice
		if req.ActualPrice != nil {
			actual = *req.ActualPrice
		}

		item := &models.CartItem{
			CartID:      cartID,
			ProductID:   product.ID,
			Quantity:    req.Quantity,
			BasePrice:   product.SellingPrice,
			ActualPrice: actual,
		}
		if err := tx.MergeCartItem(ctx, item); err != nil {
			return err
		}

		cart, err = tx.GetCart(ctx, principalID, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Cart item added",
		zap.Int64("cart_id", cartID),
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity))
	return cart, nil
}

// RemoveItem drops one line from a cart
func (s *CartService) RemoveItem(ctx context.Context, principalID, cartID, itemID int64) (*models.Cart, error) {
	var cart *models.Cart
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCart(ctx, principalID, cartID); err != nil {
			return err
		}
		if err := tx.DeleteCartItem(ctx, cartID, itemID); err != nil {
			return err
		}

		var err error
		cart, err = tx.GetCart(ctx, principalID, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddComment attaches a note to a cart; it moves to the sale on commit
func (s *CartService) AddComment(ctx context.Context, principalID, cartID int64, body string) (*models.CartComment, error) {
	v := Violations{}
	required("body", body, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	comment := &models.CartComment{CartID: cartID, AuthorID: principalID, Body: body}
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCart(ctx, principalID, cartID); err != nil {
			return err
		}
		return tx.CreateCartComment(ctx, comment)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// CancelCart discards a cart without creating a sale
func (s *CartService) CancelCart(ctx context.Context, principalID, cartID int64) error {
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		cart, err := tx.GetCart(ctx, principalID, cartID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCart(ctx, cart.ID); err != nil {
			return err
		}
		return recordAudit(ctx, tx, principalID, models.ActionDelete,
			"Cart #%d cancelled with %d item(s)", cart.ID, len(cart.Items))
	})
	if err != nil {
		return err
	}

	s.logger.Info("Cart cancelled", zap.Int64("cart_id", cartID), zap.Int64("owner_id", principalID))
	return nil
}
