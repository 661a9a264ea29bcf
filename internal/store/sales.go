package store

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// NextSaleNumber allocates the next sale number of an owner. The upsert
// increments the owner's counter row atomically, so concurrent commits never
// share a number.
func (q *Queries) NextSaleNumber(ctx context.Context, ownerID int64) (int64, error) {
	var number int64
	err := sqlx.GetContext(ctx, q.q, &number, q.q.Rebind(`
		INSERT INTO sale_sequences (owner_id, last_number)
		VALUES (?, 1)
		ON CONFLICT (owner_id) DO UPDATE SET last_number = sale_sequences.last_number + 1
		RETURNING last_number`), ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sale number: %w", err)
	}
	return number, nil
}

// CreateSale inserts a sale header
func (q *Queries) CreateSale(ctx context.Context, sale *models.Sale) error {
	sale.CreatedAt = now()
	return sqlx.GetContext(ctx, q.q, &sale.ID,
		q.q.Rebind("INSERT INTO sales (owner_id, number, created_at) VALUES (?, ?, ?) RETURNING id"),
		sale.OwnerID, sale.Number, sale.CreatedAt)
}

// CreateSaleItem inserts a sale line. OriginalQuantity is set from Quantity.
func (q *Queries) CreateSaleItem(ctx context.Context, item *models.SaleItem) error {
	item.OriginalQuantity = item.Quantity
	query := q.q.Rebind(`
		INSERT INTO sale_items (sale_id, product_id, quantity, original_quantity, base_total, actual_total)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	return sqlx.GetContext(ctx, q.q, &item.ID, query,
		item.SaleID, item.ProductID, item.Quantity, item.OriginalQuantity, item.BaseTotal, item.ActualTotal)
}

// CreateSaleComment attaches a comment to a sale. A non-zero CreatedAt is kept
// as is, which lets cart comments move over with their original timestamps.
func (q *Queries) CreateSaleComment(ctx context.Context, c *models.SaleComment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	return sqlx.GetContext(ctx, q.q, &c.ID,
		q.q.Rebind("INSERT INTO sale_comments (sale_id, author_id, body, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
		c.SaleID, c.AuthorID, c.Body, c.CreatedAt)
}

// GetSale retrieves a sale of ownerID with its remaining items and comments
func (q *Queries) GetSale(ctx context.Context, ownerID, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := sqlx.GetContext(ctx, q.q, &sale,
		q.q.Rebind("SELECT id, owner_id, number, created_at FROM sales WHERE id = ? AND owner_id = ?"),
		id, ownerID)
	if err != nil {
		return nil, notFound(err, "sale", id)
	}

	sale.Items = []models.SaleItem{}
	err = sqlx.SelectContext(ctx, q.q, &sale.Items,
		q.q.Rebind(`SELECT id, sale_id, product_id, quantity, original_quantity, base_total, actual_total
			FROM sale_items WHERE sale_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}

	sale.Comments = []models.SaleComment{}
	err = sqlx.SelectContext(ctx, q.q, &sale.Comments,
		q.q.Rebind(`SELECT id, sale_id, author_id, body, created_at
			FROM sale_comments WHERE sale_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale comments: %w", err)
	}

	return &sale, nil
}

// GetSalesByOwner lists sale headers of an owner, latest number first
func (q *Queries) GetSalesByOwner(ctx context.Context, ownerID int64, limit int) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := sqlx.SelectContext(ctx, q.q, &sales,
		q.q.Rebind("SELECT id, owner_id, number, created_at FROM sales WHERE owner_id = ? ORDER BY number DESC LIMIT ?"),
		ownerID, limit)
	return sales, err
}

// GetSaleItem retrieves one line of a sale
func (q *Queries) GetSaleItem(ctx context.Context, saleID, itemID int64) (*models.SaleItem, error) {
	var item models.SaleItem
	err := sqlx.GetContext(ctx, q.q, &item,
		q.q.Rebind(`SELECT id, sale_id, product_id, quantity, original_quantity, base_total, actual_total
			FROM sale_items WHERE id = ? AND sale_id = ?`), itemID, saleID)
	if err != nil {
		return nil, notFound(err, "sale item", itemID)
	}
	return &item, nil
}

// ShrinkSaleItem sets a line's remaining quantity and totals. The update only
// applies while the line still holds expectedQuantity; false means another
// return changed it first.
func (q *Queries) ShrinkSaleItem(ctx context.Context, itemID int64, expectedQuantity, remaining int, baseTotal, actualTotal decimal.Decimal) (bool, error) {
	result, err := q.q.ExecContext(ctx, q.q.Rebind(`
		UPDATE sale_items SET quantity = ?, base_total = ?, actual_total = ?
		WHERE id = ? AND quantity = ?`),
		remaining, baseTotal, actualTotal, itemID, expectedQuantity)
	if err != nil {
		return false, fmt.Errorf("failed to update sale item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// DeleteSaleItem removes a fully returned line, guarded like ShrinkSaleItem
func (q *Queries) DeleteSaleItem(ctx context.Context, itemID int64, expectedQuantity int) (bool, error) {
	result, err := q.q.ExecContext(ctx,
		q.q.Rebind("DELETE FROM sale_items WHERE id = ? AND quantity = ?"), itemID, expectedQuantity)
	if err != nil {
		return false, fmt.Errorf("failed to delete sale item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CreateReturn appends a return record
func (q *Queries) CreateReturn(ctx context.Context, r *models.Return) error {
	r.CreatedAt = now()
	query := q.q.Rebind(`
		INSERT INTO returns (sale_id, sale_item_id, product_id, quantity, principal_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	return sqlx.GetContext(ctx, q.q, &r.ID, query,
		r.SaleID, r.SaleItemID, r.ProductID, r.Quantity, r.PrincipalID, r.CreatedAt)
}

// GetReturnsBySale lists the returns recorded against a sale
func (q *Queries) GetReturnsBySale(ctx context.Context, saleID int64) ([]models.Return, error) {
	returns := []models.Return{}
	err := sqlx.SelectContext(ctx, q.q, &returns,
		q.q.Rebind(`SELECT id, sale_id, sale_item_id, product_id, quantity, principal_id, created_at
			FROM returns WHERE sale_id = ? ORDER BY id`), saleID)
	return returns, err
}

// ReturnedQuantity sums every return recorded against a sale line
func (q *Queries) ReturnedQuantity(ctx context.Context, saleItemID int64) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, q.q, &total,
		q.q.Rebind("SELECT COALESCE(SUM(quantity), 0) FROM returns WHERE sale_item_id = ?"), saleItemID)
	return total, err
}
