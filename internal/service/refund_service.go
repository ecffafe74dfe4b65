package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/auth"
	"storefront/internal/ledger"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RefundService handles refund requests and their admin decisions
type RefundService struct {
	store          RefundStore
	locker         Locker
	eventPublisher EventPublisher
	gracePeriod    time.Duration
	lockTTL        time.Duration
	pageSize       int
	logger         *zap.Logger
	now            func() time.Time
}

// NewRefundService creates a new refund service
func NewRefundService(
	store RefundStore,
	locker Locker,
	eventPublisher EventPublisher,
	gracePeriod time.Duration,
	lockTTL time.Duration,
	pageSize int,
) *RefundService {
	return &RefundService{
		store:          store,
		locker:         locker,
		eventPublisher: eventPublisher,
		gracePeriod:    gracePeriod,
		lockTTL:        lockTTL,
		pageSize:       pageSize,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// DecideRefundRequest is the admin decision form. Any action other than
// "approve" denies the refund.
type DecideRefundRequest struct {
	Action string `json:"action" binding:"required"`
}

// RequestRefund opens a refund for one of the caller's orders while the
// order is still inside the grace period.
func (s *RefundService) RequestRefund(ctx context.Context, id auth.Identity, orderID int64) (*models.Refund, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.RequestRefund",
		attribute.Int64("user_id", id.UserID),
		attribute.Int64("order_id", orderID))
	defer span.End()

	if err := requireUser(id); err != nil {
		return nil, err
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		util.RefundsRejectedTotal.WithLabelValues("order_not_found").Inc()
		return nil, err
	}
	if order.UserID != id.UserID && !id.IsAdmin {
		util.RefundsRejectedTotal.WithLabelValues("forbidden").Inc()
		return nil, models.ErrForbidden
	}

	now := s.now()
	if !ledger.WithinGracePeriod(order.CreatedAt, now, s.gracePeriod) {
		util.RefundsRejectedTotal.WithLabelValues("grace_expired").Inc()
		s.logger.Info("Refund rejected, grace period over",
			zap.Int64("order_id", orderID),
			zap.Time("ordered_at", order.CreatedAt))
		return nil, models.ErrGracePeriodExpired
	}

	refund, err := s.store.CreateRefund(ctx, orderID, now)
	if err != nil {
		util.RecordError(span, err)
		util.RefundsRejectedTotal.WithLabelValues("create_failed").Inc()
		return nil, err
	}

	util.RefundsRequestedTotal.Inc()
	s.logger.Info("Refund requested",
		zap.Int64("refund_id", refund.ID),
		zap.Int64("order_id", orderID))

	event := &models.RefundRequestedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRefundRequested, now),
		RefundID:  refund.ID,
		OrderID:   orderID,
		UserID:    order.UserID,
	}
	if err := s.eventPublisher.PublishRefundRequested(ctx, event); err != nil {
		s.logger.Error("Failed to publish RefundRequested event", zap.Error(err))
	}

	return refund, nil
}

// DecideRefund approves or denies a pending refund. Approval reverses the
// purchase and deletes the order; denial only deletes the refund.
func (s *RefundService) DecideRefund(ctx context.Context, id auth.Identity, refundID int64, action string) error {
	ctx, span := util.StartSpan(ctx, "RefundService.DecideRefund",
		attribute.Int64("refund_id", refundID),
		attribute.String("action", action))
	defer span.End()

	if err := requireAdmin(id); err != nil {
		return err
	}

	lockKey := fmt.Sprintf("refund:%d", refundID)
	token, ok, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	switch {
	case err != nil:
		// the row locks in the store still serialize decisions
		s.logger.Warn("Refund lock unavailable, deciding under database lock",
			zap.Int64("refund_id", refundID), zap.Error(err))
	case !ok:
		return models.ErrDecisionInProgress
	default:
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), lockKey, token); err != nil {
				s.logger.Warn("Failed to release refund lock", zap.Int64("refund_id", refundID), zap.Error(err))
			}
		}()
	}

	if action == models.RefundActionApprove {
		err = s.approve(ctx, id, refundID)
	} else {
		err = s.deny(ctx, id, refundID)
	}
	if err != nil {
		util.RecordError(span, err)
	}
	return err
}

func (s *RefundService) approve(ctx context.Context, id auth.Identity, refundID int64) error {
	result, err := s.store.ApproveRefundTx(ctx, refundID)
	if err != nil {
		return err
	}

	util.RefundsDecidedTotal.WithLabelValues(models.RefundActionApprove).Inc()
	util.FundsRefundedTotal.Add(result.Credited.InexactFloat64())

	s.logger.Info("Refund approved",
		zap.Int64("refund_id", refundID),
		zap.Int64("order_id", result.Order.ID),
		zap.Int64("admin_id", id.UserID),
		zap.String("credited", result.Credited.StringFixed(2)))

	event := &models.RefundApprovedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRefundApproved, s.now()),
		RefundID:  refundID,
		OrderID:   result.Order.ID,
		UserID:    result.Order.UserID,
		ItemID:    result.Order.ItemID,
		Amount:    result.Order.Amount,
		Credited:  result.Credited,
	}
	if err := s.eventPublisher.PublishRefundApproved(ctx, event); err != nil {
		s.logger.Error("Failed to publish RefundApproved event", zap.Error(err))
	}
	return nil
}

func (s *RefundService) deny(ctx context.Context, id auth.Identity, refundID int64) error {
	refund, err := s.store.DenyRefund(ctx, refundID)
	if err != nil {
		return err
	}

	util.RefundsDecidedTotal.WithLabelValues(models.RefundActionDeny).Inc()
	s.logger.Info("Refund denied",
		zap.Int64("refund_id", refundID),
		zap.Int64("order_id", refund.OrderID),
		zap.Int64("admin_id", id.UserID))

	event := &models.RefundDeniedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRefundDenied, s.now()),
		RefundID:  refundID,
		OrderID:   refund.OrderID,
	}
	if err := s.eventPublisher.PublishRefundDenied(ctx, event); err != nil {
		s.logger.Error("Failed to publish RefundDenied event", zap.Error(err))
	}
	return nil
}

// ListRefunds returns one page of pending refunds for admins
func (s *RefundService) ListRefunds(ctx context.Context, id auth.Identity, page int) ([]models.RefundView, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}

	limit, offset := pageOffset(page, s.pageSize)
	refunds, err := s.store.ListRefunds(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}
