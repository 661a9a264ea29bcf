package store

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateCart creates a new empty cart
func (q *Queries) CreateCart(ctx context.Context, cart *models.Cart) error {
	cart.CreatedAt = now()
	return sqlx.GetContext(ctx, q.q, &cart.ID,
		q.q.Rebind("INSERT INTO carts (owner_id, created_at) VALUES (?, ?) RETURNING id"),
		cart.OwnerID, cart.CreatedAt)
}

// GetCart retrieves a cart of ownerID together with its items and comments
func (q *Queries) GetCart(ctx context.Context, ownerID, id int64) (*models.Cart, error) {
	var cart models.Cart
	err := sqlx.GetContext(ctx, q.q, &cart,
		q.q.Rebind("SELECT id, owner_id, created_at FROM carts WHERE id = ? AND owner_id = ?"),
		id, ownerID)
	if err != nil {
		return nil, notFound(err, "cart", id)
	}

	cart.Items = []models.CartItem{}
	err = sqlx.SelectContext(ctx, q.q, &cart.Items,
		q.q.Rebind(`SELECT id, cart_id, product_id, quantity, base_price, actual_price, created_at
			FROM cart_items WHERE cart_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	cart.Comments = []models.CartComment{}
	err = sqlx.SelectContext(ctx, q.q, &cart.Comments,
		q.q.Rebind(`SELECT id, cart_id, author_id, body, created_at
			FROM cart_comments WHERE cart_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart comments: %w", err)
	}

	return &cart, nil
}

// GetCartsByOwner lists the carts of an owner, newest first, without items
func (q *Queries) GetCartsByOwner(ctx context.Context, ownerID int64) ([]models.Cart, error) {
	carts := []models.Cart{}
	err := sqlx.SelectContext(ctx, q.q, &carts,
		q.q.Rebind("SELECT id, owner_id, created_at FROM carts WHERE owner_id = ? ORDER BY id DESC"),
		ownerID)
	return carts, err
}

// DeleteCart removes a cart; its items and comments go with it
func (q *Queries) DeleteCart(ctx context.Context, id int64) error {
	result, err := q.q.ExecContext(ctx, q.q.Rebind("DELETE FROM carts WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("cart %d: %w", id, ErrNotFound)
	}
	return nil
}

// MergeCartItem adds a product to a cart. When the cart already holds the
// product its quantity grows by item.Quantity and both unit prices are
// replaced. item.ID and item.Quantity are updated from the resulting row.
func (q *Queries) MergeCartItem(ctx context.Context, item *models.CartItem) error {
	query := q.q.Rebind(`
		INSERT INTO cart_items (cart_id, product_id, quantity, base_price, actual_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET
			quantity = cart_items.quantity + excluded.quantity,
			base_price = excluded.base_price,
			actual_price = excluded.actual_price
		RETURNING id, quantity`)

	var merged struct {
		ID       int64 `db:"id"`
		Quantity int   `db:"quantity"`
	}
	err := sqlx.GetContext(ctx, q.q, &merged, query,
		item.CartID, item.ProductID, item.Quantity, item.BasePrice, item.ActualPrice, now())
	if err != nil {
		return fmt.Errorf("failed to merge cart item: %w", err)
	}

	item.ID = merged.ID
	item.Quantity = merged.Quantity
	return nil
}

// DeleteCartItem removes one line from a cart
func (q *Queries) DeleteCartItem(ctx context.Context, cartID, itemID int64) error {
	result, err := q.q.ExecContext(ctx,
		q.q.Rebind("DELETE FROM cart_items WHERE id = ? AND cart_id = ?"), itemID, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("cart item %d: %w", itemID, ErrNotFound)
	}
	return nil
}

// CreateCartComment attaches a comment to a cart
func (q *Queries) CreateCartComment(ctx context.Context, c *models.CartComment) error {
	c.CreatedAt = now()
	return sqlx.GetContext(ctx, q.q, &c.ID,
		q.q.Rebind("INSERT INTO cart_comments (cart_id, author_id, body, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
		c.CartID, c.AuthorID, c.Body, c.CreatedAt)
}
