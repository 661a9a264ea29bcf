package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCommitted = "SALE_COMMITTED"
	EventTypeItemReturned  = "ITEM_RETURNED"
	EventTypeLowStock      = "LOW_STOCK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCommittedEvent published when a cart becomes a sale
type SaleCommittedEvent struct {
	BaseEvent
	SaleID      int64           `json:"sale_id"`
	SaleNumber  int64           `json:"sale_number"`
	OwnerID     int64           `json:"owner_id"`
	BaseTotal   decimal.Decimal `json:"base_total"`
	ActualTotal decimal.Decimal `json:"actual_total"`
	Items       []SaleItemData  `json:"items"`
}

// ItemReturnedEvent published when part of a sale line is returned
type ItemReturnedEvent struct {
	BaseEvent
	ReturnID   int64 `json:"return_id"`
	SaleID     int64 `json:"sale_id"`
	SaleItemID int64 `json:"sale_item_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
	Remaining  int   `json:"remaining"`
	OwnerID    int64 `json:"owner_id"`
}

// LowStockEvent published for every product a sale left below the threshold
type LowStockEvent struct {
	BaseEvent
	OwnerID int64          `json:"owner_id"`
	SaleID  int64          `json:"sale_id"`
	Notice  LowStockNotice `json:"notice"`
}

// SaleItemData represents a sale line in events
type SaleItemData struct {
	ProductID   int64           `json:"product_id"`
	Quantity    int             `json:"quantity"`
	ActualTotal decimal.Decimal `json:"actual_total"`
}
