package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"inventory-ledger/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/drain_notices.lua
var drainNoticesScript string

type Client struct {
	rdb         *redis.Client
	drainScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:         rdb,
		drainScript: redis.NewScript(drainNoticesScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func noticeKey(ownerID int64) string {
	return fmt.Sprintf("notices:%d", ownerID)
}

// PushNotice appends a low-stock notice to the owner's notice box and
// refreshes the box TTL.
func (c *Client) PushNotice(ctx context.Context, ownerID int64, notice models.LowStockNotice, ttl time.Duration) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	key := noticeKey(ownerID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notice failed: %w", err)
	}
	return nil
}

// DrainNotices returns the owner's pending notices in arrival order and
// empties the box. Each notice is returned exactly once.
func (c *Client) DrainNotices(ctx context.Context, ownerID int64) ([]models.LowStockNotice, error) {
	result, err := c.drainScript.Run(ctx, c.rdb, []string{noticeKey(ownerID)}).Result()
	if err != nil {
		return nil, fmt.Errorf("drain notices script failed: %w", err)
	}

	raw, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script result type")
	}

	notices := make([]models.LowStockNotice, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		var n models.LowStockNotice
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notice: %w", err)
		}
		notices = append(notices, n)
	}
	return notices, nil
}

// MarkEventProcessed records eventID with a TTL. It returns false when the
// event was already recorded, so redelivered events can be skipped.
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("processed:%s", eventID), "1", ttl).Result()
}

// ForgetEvent removes the processed marker for eventID
func (c *Client) ForgetEvent(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("processed:%s", eventID)).Err()
}
