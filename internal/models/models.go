package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Warehouse is a named stock location owned by a tenant
type Warehouse struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog entry with its on-hand quantity
type Product struct {
	ID           int64               `db:"id" json:"id"`
	OwnerID      int64               `db:"owner_id" json:"owner_id"`
	WarehouseID  *int64              `db:"warehouse_id" json:"warehouse_id,omitempty"`
	Name         string              `db:"name" json:"name"`
	Quantity     int                 `db:"quantity" json:"quantity"`
	CostPrice    decimal.NullDecimal `db:"cost_price" json:"cost_price"`
	SellingPrice decimal.Decimal     `db:"selling_price" json:"selling_price"`
	ArchivedAt   *time.Time          `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// Archived reports whether the product was withdrawn from sale
func (p *Product) Archived() bool {
	return p.ArchivedAt != nil
}

// Cart is a mutable staging area for line items before they become a sale
type Cart struct {
	ID        int64         `db:"id" json:"id"`
	OwnerID   int64         `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	Items     []CartItem    `db:"-" json:"items"`
	Comments  []CartComment `db:"-" json:"comments"`
}

// CartItem is one product line in a cart. Prices are per unit.
type CartItem struct {
	ID          int64           `db:"id" json:"id"`
	CartID      int64           `db:"cart_id" json:"cart_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	BasePrice   decimal.Decimal `db:"base_price" json:"base_price"`
	ActualPrice decimal.Decimal `db:"actual_price" json:"actual_price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// BaseTotal is quantity times the list price captured at add time
func (i CartItem) BaseTotal() decimal.Decimal {
	return i.BasePrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ActualTotal is quantity times the negotiated price
func (i CartItem) ActualTotal() decimal.Decimal {
	return i.ActualPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals sums base and actual totals over every line
func (c *Cart) Totals() (decimal.Decimal, decimal.Decimal) {
	sumBase, sumActual := decimal.Zero, decimal.Zero
	for _, item := range c.Items {
		sumBase = sumBase.Add(item.BaseTotal())
		sumActual = sumActual.Add(item.ActualTotal())
	}
	return sumBase, sumActual
}

// RequestedByProduct groups line quantities per product
func (c *Cart) RequestedByProduct() map[int64]int {
	requested := make(map[int64]int, len(c.Items))
	for _, item := range c.Items {
		requested[item.ProductID] += item.Quantity
	}
	return requested
}

// CartComment is a free-text note attached to a cart
type CartComment struct {
	ID        int64     `db:"id" json:"id"`
	CartID    int64     `db:"cart_id" json:"cart_id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Sale is the immutable record of a committed cart
type Sale struct {
	ID        int64         `db:"id" json:"id"`
	OwnerID   int64         `db:"owner_id" json:"owner_id"`
	Number    int64         `db:"number" json:"number"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	Items     []SaleItem    `db:"-" json:"items"`
	Comments  []SaleComment `db:"-" json:"comments"`
}

// SaleItem is a historical line of a sale. Only returns mutate it.
type SaleItem struct {
	ID               int64           `db:"id" json:"id"`
	SaleID           int64           `db:"sale_id" json:"sale_id"`
	ProductID        int64           `db:"product_id" json:"product_id"`
	Quantity         int             `db:"quantity" json:"quantity"`
	OriginalQuantity int             `db:"original_quantity" json:"original_quantity"`
	BaseTotal        decimal.Decimal `db:"base_total" json:"base_total"`
	ActualTotal      decimal.Decimal `db:"actual_total" json:"actual_total"`
}

// SaleComment is a note attached to a sale, possibly carried over from its cart
type SaleComment struct {
	ID        int64     `db:"id" json:"id"`
	SaleID    int64     `db:"sale_id" json:"sale_id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Return records a partial reversal of a sale line. It is append-only.
type Return struct {
	ID          int64     `db:"id" json:"id"`
	SaleID      int64     `db:"sale_id" json:"sale_id"`
	SaleItemID  int64     `db:"sale_item_id" json:"sale_item_id"`
	ProductID   int64     `db:"product_id" json:"product_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	PrincipalID int64     `db:"principal_id" json:"principal_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LogEntry is an append-only audit record
type LogEntry struct {
	ID          int64     `db:"id" json:"id"`
	PrincipalID *int64    `db:"principal_id" json:"principal_id,omitempty"`
	ActionType  string    `db:"action_type" json:"action_type"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Audit action kinds
const (
	ActionAdd    = "ADD"
	ActionEdit   = "EDIT"
	ActionDelete = "DELETE"
	ActionSale   = "SALE"
	ActionReturn = "RETURN"
	ActionLogin  = "LOGIN"
)

// LowStockNotice is raised when a sale leaves a product nearly sold out
type LowStockNotice struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Remaining   int    `json:"remaining"`
}
