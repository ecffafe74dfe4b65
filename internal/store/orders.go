package store

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/ledger"
	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = "id, user_id, item_id, amount, unit_price, created_at"

// PurchaseTx places an order in one transaction. The item and user rows
// are locked FOR UPDATE (item first, matching ApproveRefundTx) so that
// concurrent purchases cannot oversell stock or double-spend funds.
func (s *Store) PurchaseTx(ctx context.Context, userID, itemID int64, amount int, now time.Time) (*models.Order, error) {
	var order *models.Order

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		if _, err := ledger.Purchase(user, item, amount); err != nil {
			return err
		}

		if err := saveFunds(ctx, tx, user); err != nil {
			return err
		}
		if err := saveQuantity(ctx, tx, item); err != nil {
			return err
		}

		order = &models.Order{
			UserID:    userID,
			ItemID:    itemID,
			Amount:    amount,
			UnitPrice: item.Price,
			CreatedAt: now,
		}

		query := `
			INSERT INTO orders (user_id, item_id, amount, unit_price, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`

		if err := tx.GetContext(ctx, &order.ID, query,
			order.UserID, order.ItemID, order.Amount, order.UnitPrice, order.CreatedAt); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, models.ErrOrderNotFound)
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// ListOrders returns one page of all orders, newest first
func (s *Store) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	return orders, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

func lockItem(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Item, error) {
	var item models.Item
	err := tx.GetContext(ctx, &item, "SELECT "+itemColumns+" FROM items WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, models.ErrItemNotFound)
	}
	return &item, nil
}

func lockUser(ctx context.Context, tx *sqlx.Tx, id int64) (*models.User, error) {
	var user models.User
	err := tx.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, models.ErrUserNotFound)
	}
	return &user, nil
}

func saveFunds(ctx context.Context, tx *sqlx.Tx, user *models.User) error {
	if _, err := tx.ExecContext(ctx, "UPDATE users SET funds = $1 WHERE id = $2", user.Funds, user.ID); err != nil {
		return fmt.Errorf("failed to update funds: %w", err)
	}
	return nil
}

func saveQuantity(ctx context.Context, tx *sqlx.Tx, item *models.Item) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE items SET quantity = $1, updated_at = NOW() WHERE id = $2", item.Quantity, item.ID); err != nil {
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	return nil
}
