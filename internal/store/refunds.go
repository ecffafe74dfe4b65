package store

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/ledger"
	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const refundColumns = "id, order_id, refund_requested, request_time"

// ApprovedRefund describes the rows touched by an approval
type ApprovedRefund struct {
	Refund   models.Refund
	Order    models.Order
	Credited decimal.Decimal
}

// CreateRefund records a refund request for an order. An order may have at
// most one pending refund.
func (s *Store) CreateRefund(ctx context.Context, orderID int64, now time.Time) (*models.Refund, error) {
	refund := &models.Refund{
		OrderID:         orderID,
		RefundRequested: true,
		RequestTime:     now,
	}

	query := `
		INSERT INTO refunds (order_id, refund_requested, request_time)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := s.db.GetContext(ctx, &refund.ID, query, refund.OrderID, refund.RefundRequested, refund.RequestTime)
	switch {
	case isPQCode(err, pqUniqueViolation):
		return nil, models.ErrRefundExists
	case isPQCode(err, pqForeignKeyViolation):
		return nil, models.ErrOrderNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}
	return refund, nil
}

// ListRefunds returns one page of pending refunds joined with their orders
func (s *Store) ListRefunds(ctx context.Context, limit, offset int) ([]models.RefundView, error) {
	query := `
		SELECT r.id, r.order_id, r.refund_requested, r.request_time,
			o.user_id, o.item_id, o.amount, o.unit_price, o.created_at AS ordered_at
		FROM refunds r
		JOIN orders o ON o.id = r.order_id
		ORDER BY r.request_time
		LIMIT $1 OFFSET $2`

	refunds := []models.RefundView{}
	err := s.db.SelectContext(ctx, &refunds, query, limit, offset)
	return refunds, err
}

// ApproveRefundTx reverses the ledger for the refunded order and removes
// both the refund and the order, all in one transaction. The refund row is
// deleted before the order because refunds reference orders with
// ON DELETE RESTRICT.
func (s *Store) ApproveRefundTx(ctx context.Context, refundID int64) (*ApprovedRefund, error) {
	var result ApprovedRefund

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &result.Refund,
			"SELECT "+refundColumns+" FROM refunds WHERE id = $1 FOR UPDATE", refundID); err != nil {
			return notFound(err, models.ErrRefundNotFound)
		}

		if err := tx.GetContext(ctx, &result.Order,
			"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", result.Refund.OrderID); err != nil {
			return notFound(err, models.ErrOrderNotFound)
		}

		item, err := lockItem(ctx, tx, result.Order.ItemID)
		if err != nil {
			return err
		}

		user, err := lockUser(ctx, tx, result.Order.UserID)
		if err != nil {
			return err
		}

		result.Credited = ledger.Reverse(user, item, &result.Order)

		if err := saveFunds(ctx, tx, user); err != nil {
			return err
		}
		if err := saveQuantity(ctx, tx, item); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM refunds WHERE id = $1", result.Refund.ID); err != nil {
			return fmt.Errorf("failed to delete refund: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", result.Order.ID); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DenyRefund removes the refund request and leaves the order untouched
func (s *Store) DenyRefund(ctx context.Context, refundID int64) (*models.Refund, error) {
	var refund models.Refund
	err := s.db.GetContext(ctx, &refund,
		"DELETE FROM refunds WHERE id = $1 RETURNING "+refundColumns, refundID)
	if err != nil {
		return nil, notFound(err, models.ErrRefundNotFound)
	}
	return &refund, nil
}
