package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles purchases and order reads
type OrderService struct {
	store          OrderStore
	cache          IdempotencyCache
	eventPublisher EventPublisher
	idempotencyTTL time.Duration
	pageSize       int
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	cache IdempotencyCache,
	eventPublisher EventPublisher,
	idempotencyTTL time.Duration,
	pageSize int,
) *OrderService {
	return &OrderService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		idempotencyTTL: idempotencyTTL,
		pageSize:       pageSize,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// CreateOrderRequest is the purchase form
type CreateOrderRequest struct {
	ItemID         int64  `json:"-"`
	Amount         int    `json:"amount" binding:"required,min=1"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	Order    OrderView `json:"order"`
	Replayed bool      `json:"replayed"`
}

// CreateOrder buys req.Amount units of an item for the caller
func (s *OrderService) CreateOrder(ctx context.Context, id auth.Identity, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder",
		attribute.Int64("user_id", id.UserID),
		attribute.Int64("item_id", req.ItemID))
	defer span.End()

	if err := requireUser(id); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", req.Amount)
	}

	var key string
	if req.IdempotencyKey != "" {
		key = idempotencyKey(id, req.IdempotencyKey)
		replay, reserved, err := s.reserve(ctx, id, key)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			util.OrdersReplayedTotal.Inc()
			return replay, nil
		}
		if !reserved {
			key = ""
		}
	}

	start := time.Now()
	order, err := s.store.PurchaseTx(ctx, id.UserID, req.ItemID, req.Amount, s.now())
	util.PurchaseLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.RecordError(span, err)
		if key != "" {
			if err := s.cache.ReleaseIdempotencyKey(ctx, key, 0); err != nil {
				s.logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
		return nil, s.purchaseFailed(id, req, err)
	}

	total := order.Total()
	util.OrdersCreatedTotal.Inc()
	util.FundsSpentTotal.Add(total.InexactFloat64())

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("item_id", order.ItemID),
		zap.Int("amount", order.Amount),
		zap.String("total", total.StringFixed(2)))

	if key != "" {
		if err := s.cache.SetIdempotencyKey(ctx, key, order.ID, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCreated, order.CreatedAt),
		OrderID:   order.ID,
		UserID:    order.UserID,
		ItemID:    order.ItemID,
		Amount:    order.Amount,
		UnitPrice: order.UnitPrice,
		Total:     total,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateOrderResponse{Order: newOrderView(*order)}, nil
}

// reserve claims key for a new purchase. When an earlier request already
// committed under key its order is returned instead. reserved is false when
// Redis is unavailable and the purchase goes ahead without deduplication.
func (s *OrderService) reserve(ctx context.Context, id auth.Identity, key string) (replay *CreateOrderResponse, reserved bool, err error) {
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.cache.ReserveIdempotencyKey(ctx, key, s.idempotencyTTL)
		if err != nil {
			s.logger.Warn("Idempotency reservation failed", zap.Error(err))
			return nil, false, nil
		}
		if ok {
			return nil, true, nil
		}

		orderID, err := s.cache.GetIdempotencyKey(ctx, key)
		switch {
		case errors.Is(err, redisclient.ErrPending):
			return nil, false, models.ErrOrderInProgress
		case errors.Is(err, redisclient.ErrNotCached):
			// expired between the two calls
			continue
		case err != nil:
			s.logger.Warn("Idempotency lookup failed", zap.Error(err))
			return nil, false, nil
		}

		order, err := s.store.GetOrderByID(ctx, orderID)
		if err == nil && order.UserID == id.UserID {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", key),
				zap.Int64("order_id", order.ID))
			return &CreateOrderResponse{Order: newOrderView(*order), Replayed: true}, false, nil
		}
		if err != nil && !errors.Is(err, models.ErrOrderNotFound) {
			return nil, false, fmt.Errorf("failed to load replayed order: %w", err)
		}

		// the order was refunded in the meantime; the key is free again
		if err := s.cache.ReleaseIdempotencyKey(ctx, key, orderID); err != nil {
			s.logger.Warn("Failed to release idempotency key", zap.Error(err))
			return nil, false, nil
		}
	}
	return nil, false, models.ErrOrderInProgress
}

func (s *OrderService) purchaseFailed(id auth.Identity, req *CreateOrderRequest, err error) error {
	var reason string
	switch {
	case errors.Is(err, models.ErrOutOfStock):
		reason = "out_of_stock"
	case errors.Is(err, models.ErrInsufficientFunds):
		reason = "insufficient_funds"
	case errors.Is(err, models.ErrItemNotFound):
		reason = "item_not_found"
	case errors.Is(err, models.ErrUserNotFound):
		util.OrdersFailedTotal.WithLabelValues("unknown_user").Inc()
		return models.ErrUnauthenticated
	default:
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersFailedTotal.WithLabelValues(reason).Inc()
	s.logger.Info("Purchase rejected",
		zap.Int64("user_id", id.UserID),
		zap.Int64("item_id", req.ItemID),
		zap.Int("amount", req.Amount),
		zap.String("reason", reason))
	return err
}

func idempotencyKey(id auth.Identity, key string) string {
	return fmt.Sprintf("%d:%s", id.UserID, key)
}

// GetOrder retrieves an order visible to the caller
func (s *OrderService) GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*OrderView, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != id.UserID && !id.IsAdmin {
		return nil, models.ErrOrderNotFound
	}

	view := newOrderView(*order)
	return &view, nil
}

// ListOrders returns the caller's orders; admins page through all orders
func (s *OrderService) ListOrders(ctx context.Context, id auth.Identity, page int) ([]OrderView, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}

	var (
		orders []models.Order
		err    error
	)
	if id.IsAdmin {
		limit, offset := pageOffset(page, s.pageSize)
		orders, err = s.store.ListOrders(ctx, limit, offset)
	} else {
		orders, err = s.store.GetOrdersByUserID(ctx, id.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return newOrderViews(orders), nil
}
