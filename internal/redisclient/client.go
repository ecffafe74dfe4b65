package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/adjust_stock.lua
var adjustStockScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

var (
	// ErrNotCached is returned when a key has no cached value
	ErrNotCached = errors.New("not cached")
	// ErrPending is returned for an idempotency key whose order is not committed yet
	ErrPending = errors.New("idempotency key pending")
)

// pendingOrder marks a reserved idempotency key. Order IDs start at 1.
const pendingOrder = "0"

type Client struct {
	rdb           *redis.Client
	adjustScript  *redis.Script
	releaseScript *redis.Script
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

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		adjustScript:  redis.NewScript(adjustStockScript),
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection for readiness probes
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func stockKey(itemID int64) string {
	return fmt.Sprintf("stock:%d", itemID)
}

// SetStock overwrites the cached stock of an item
func (c *Client) SetStock(ctx context.Context, itemID int64, quantity int) error {
	return c.rdb.Set(ctx, stockKey(itemID), quantity, 0).Err()
}

// AdjustStock atomically applies delta to a cached stock value.
// tracked is false when the item has never been seeded.
func (c *Client) AdjustStock(ctx context.Context, itemID int64, delta int) (quantity int, tracked bool, err error) {
	result, err := c.adjustScript.Run(ctx, c.rdb, []string{stockKey(itemID)}, delta).Result()
	if err != nil {
		return 0, false, fmt.Errorf("adjust stock script failed: %w", err)
	}

	value, ok := result.(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected script result type")
	}
	if value < 0 {
		return 0, false, nil
	}

	return int(value), true, nil
}

// GetStock returns the cached stock of an item
func (c *Client) GetStock(ctx context.Context, itemID int64) (int, error) {
	value, err := c.rdb.Get(ctx, stockKey(itemID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotCached
	}
	return value, err
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// ReserveIdempotencyKey claims key for a purchase that has not committed yet.
// It returns false when another request already holds the key.
func (c *Client) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), pendingOrder, ttl).Result()
}

// SetIdempotencyKey remembers which order a client key produced
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), orderID, ttl).Err()
}

// GetIdempotencyKey returns the order ID stored for key, or ErrPending
// while the reserving request is still running.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	value, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotCached
	}
	if err != nil {
		return 0, err
	}
	if value == pendingOrder {
		return 0, ErrPending
	}
	return strconv.ParseInt(value, 10, 64)
}

// ReleaseIdempotencyKey deletes key if it still maps to orderID.
// Pass 0 to drop a reservation whose purchase failed.
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string, orderID int64) error {
	value := strconv.FormatInt(orderID, 10)
	if _, err := c.releaseScript.Run(ctx, c.rdb, []string{idempotencyKey(key)}, value).Result(); err != nil {
		return fmt.Errorf("release idempotency key failed: %w", err)
	}
	return nil
}

// AcquireLock acquires a distributed lock. The returned token must be
// passed to ReleaseLock so that only the owner can release it.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a distributed lock held with token
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
