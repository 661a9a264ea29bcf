package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter is satisfied by Producer
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing ledger events
type EventPublisher struct {
	writer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

func ownerKey(ownerID int64) string {
	return fmt.Sprintf("owner-%d", ownerID)
}

// PublishSaleCommitted publishes SaleCommitted event
func (ep *EventPublisher) PublishSaleCommitted(ctx context.Context, event *models.SaleCommittedEvent) error {
	return ep.writer.PublishEvent(ctx, ownerKey(event.OwnerID), event)
}

// PublishItemReturned publishes ItemReturned event
func (ep *EventPublisher) PublishItemReturned(ctx context.Context, event *models.ItemReturnedEvent) error {
	return ep.writer.PublishEvent(ctx, ownerKey(event.OwnerID), event)
}

// PublishLowStock publishes LowStock event
func (ep *EventPublisher) PublishLowStock(ctx context.Context, event *models.LowStockEvent) error {
	return ep.writer.PublishEvent(ctx, ownerKey(event.OwnerID), event)
}

// EventHandler routes incoming ledger events to registered callbacks
type EventHandler struct {
	onLowStock      func(context.Context, *models.LowStockEvent) error
	onSaleCommitted func(context.Context, *models.SaleCommittedEvent) error
	onItemReturned  func(context.Context, *models.ItemReturnedEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnLowStock registers a handler for LowStock events
func (eh *EventHandler) OnLowStock(handler func(context.Context, *models.LowStockEvent) error) {
	eh.onLowStock = handler
}

// OnSaleCommitted registers a handler for SaleCommitted events
func (eh *EventHandler) OnSaleCommitted(handler func(context.Context, *models.SaleCommittedEvent) error) {
	eh.onSaleCommitted = handler
}

// OnItemReturned registers a handler for ItemReturned events
func (eh *EventHandler) OnItemReturned(handler func(context.Context, *models.ItemReturnedEvent) error) {
	eh.onItemReturned = handler
}

// HandleMessage routes messages to appropriate handlers. Events without a
// registered handler are acknowledged and skipped.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeLowStock:
		if eh.onLowStock != nil {
			var event models.LowStockEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal LowStock event: %w", err)
			}
			return eh.onLowStock(ctx, &event)
		}

	case models.EventTypeSaleCommitted:
		if eh.onSaleCommitted != nil {
			var event models.SaleCommittedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleCommitted event: %w", err)
			}
			return eh.onSaleCommitted(ctx, &event)
		}

	case models.EventTypeItemReturned:
		if eh.onItemReturned != nil {
			var event models.ItemReturnedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ItemReturned event: %w", err)
			}
			return eh.onItemReturned(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
