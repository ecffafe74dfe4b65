// Package ledger holds the balance and inventory rules applied when an
// order is placed or reversed. Callers load and lock the rows, apply these
// functions, then persist the mutated values in the same transaction.
package ledger

import (
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Total returns amount * price
func Total(price decimal.Decimal, amount int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(amount)))
}

// Purchase debits the user and takes amount units out of stock.
// On error neither value is modified.
func Purchase(user *models.User, item *models.Item, amount int) (decimal.Decimal, error) {
	if amount <= 0 {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %d", amount)
	}

	if item.Quantity < amount {
		return decimal.Zero, models.ErrOutOfStock
	}

	total := Total(item.Price, amount)
	if user.Funds.LessThan(total) {
		return decimal.Zero, models.ErrInsufficientFunds
	}

	user.Funds = user.Funds.Sub(total).Round(2)
	item.Quantity -= amount

	return total, nil
}

// Reverse credits back what order charged and restocks the item
func Reverse(user *models.User, item *models.Item, order *models.Order) decimal.Decimal {
	credit := order.Total()

	user.Funds = user.Funds.Add(credit).Round(2)
	item.Quantity += order.Amount

	return credit
}

// WithinGracePeriod reports whether a refund may still be requested for
// an order placed at orderedAt.
func WithinGracePeriod(orderedAt, now time.Time, grace time.Duration) bool {
	return now.Before(orderedAt.Add(grace))
}
