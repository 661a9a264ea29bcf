package worker

import (
	"context"
	"fmt"
	"time"

	"inventory-ledger/internal/broker"
	"inventory-ledger/internal/models"
	"inventory-ledger/internal/util"

	"go.uber.org/zap"
)

// processedTTL bounds how long relayed event IDs are remembered.
const processedTTL = 24 * time.Hour

// NoticeStore is implemented by redisclient.Client
type NoticeStore interface {
	PushNotice(ctx context.Context, ownerID int64, notice models.LowStockNotice, ttl time.Duration) error
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

// NoticeWorker relays LowStock events from the ledger topic into each
// owner's notice box.
type NoticeWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notices      NoticeStore
	noticeTTL    time.Duration
	logger       *zap.Logger
}

// NewNoticeWorker creates a new notice worker
func NewNoticeWorker(consumer *broker.Consumer, notices NoticeStore, noticeTTL time.Duration) *NoticeWorker {
	w := &NoticeWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		notices:      notices,
		noticeTTL:    noticeTTL,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnLowStock(w.HandleLowStock)
	w.eventHandler.OnSaleCommitted(w.logSaleCommitted)
	w.eventHandler.OnItemReturned(w.logItemReturned)
	return w
}

// Start starts the worker
func (w *NoticeWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notice worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NoticeWorker) Stop() error {
	w.logger.Info("Stopping notice worker")
	return w.consumer.Close()
}

// HandleLowStock pushes the event's notice into the owner's box. Events seen
// before are skipped.
func (w *NoticeWorker) HandleLowStock(ctx context.Context, event *models.LowStockEvent) error {
	if event.EventID != "" {
		fresh, err := w.notices.MarkEventProcessed(ctx, event.EventID, processedTTL)
		if err != nil {
			util.NoticesRelayedTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to check event %s: %w", event.EventID, err)
		}
		if !fresh {
			util.NoticesRelayedTotal.WithLabelValues("duplicate").Inc()
			w.logger.Debug("Skipping duplicate low-stock event", zap.String("event_id", event.EventID))
			return nil
		}
	}

	if err := w.notices.PushNotice(ctx, event.OwnerID, event.Notice, w.noticeTTL); err != nil {
		util.NoticesRelayedTotal.WithLabelValues("error").Inc()
		// unmark so a redelivery can retry
		if event.EventID != "" {
			if ferr := w.notices.ForgetEvent(ctx, event.EventID); ferr != nil {
				w.logger.Warn("Failed to unmark event", zap.String("event_id", event.EventID), zap.Error(ferr))
			}
		}
		return err
	}

	util.NoticesRelayedTotal.WithLabelValues("relayed").Inc()
	w.logger.Info("Relayed low-stock notice",
		zap.Int64("owner_id", event.OwnerID),
		zap.Int64("product_id", event.Notice.ProductID),
		zap.Int("remaining", event.Notice.Remaining))
	return nil
}

func (w *NoticeWorker) logSaleCommitted(ctx context.Context, event *models.SaleCommittedEvent) error {
	w.logger.Debug("Observed committed sale",
		zap.Int64("sale_id", event.SaleID),
		zap.Int64("number", event.SaleNumber),
		zap.String("actual_total", event.ActualTotal.StringFixed(2)))
	return nil
}

func (w *NoticeWorker) logItemReturned(ctx context.Context, event *models.ItemReturnedEvent) error {
	w.logger.Debug("Observed return",
		zap.Int64("sale_id", event.SaleID),
		zap.Int64("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity),
		zap.Int("remaining", event.Remaining))
	return nil
}
