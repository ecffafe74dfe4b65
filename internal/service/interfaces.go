package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

// UserStore is the account persistence used by UserService
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
}

// ItemStore is the catalog persistence used by CatalogService
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	ListItems(ctx context.Context, limit, offset int) ([]models.Item, error)
	CountItems(ctx context.Context) (int, error)
}

// OrderStore is the persistence used by OrderService
type OrderStore interface {
	PurchaseTx(ctx context.Context, userID, itemID int64, amount int, now time.Time) (*models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error)
}

// RefundStore is the persistence used by RefundService
type RefundStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	CreateRefund(ctx context.Context, orderID int64, now time.Time) (*models.Refund, error)
	ApproveRefundTx(ctx context.Context, refundID int64) (*store.ApprovedRefund, error)
	DenyRefund(ctx context.Context, refundID int64) (*models.Refund, error)
	ListRefunds(ctx context.Context, limit, offset int) ([]models.RefundView, error)
}

// ProjectionStore is what StockProjector needs from the database
type ProjectionStore interface {
	GetItemQuantities(ctx context.Context) (map[int64]int, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// EventPublisher emits domain events; *broker.EventPublisher satisfies it
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishRefundRequested(ctx context.Context, event *models.RefundRequestedEvent) error
	PublishRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error
	PublishRefundDenied(ctx context.Context, event *models.RefundDeniedEvent) error
	PublishItemUpserted(ctx context.Context, event *models.ItemUpsertedEvent) error
}

// IdempotencyCache maps client idempotency keys to order IDs. A key is
// reserved before the purchase and filled in once the order commits.
type IdempotencyCache interface {
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)
	SetIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string, orderID int64) error
}

// Locker provides short-lived mutual exclusion across instances
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// StockCache is the Redis stock projection
type StockCache interface {
	SetStock(ctx context.Context, itemID int64, quantity int) error
	AdjustStock(ctx context.Context, itemID int64, delta int) (int, bool, error)
	GetStock(ctx context.Context, itemID int64) (int, error)
}
