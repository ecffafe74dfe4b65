package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a storefront account with a spendable balance
type User struct {
	ID           int64           `db:"id" json:"id"`
	Username     string          `db:"username" json:"username"`
	PasswordHash string          `db:"password_hash" json:"-"`
	Funds        decimal.Decimal `db:"funds" json:"funds"`
	IsAdmin      bool            `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Item represents a purchasable product and its remaining stock
type Item struct {
	ID          int64           `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	Quantity    int             `db:"quantity" json:"quantity"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Order is a completed purchase of Amount units of one item.
// CreatedAt is the purchase time and never changes after insert.
type Order struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	ItemID    int64           `db:"item_id" json:"item_id"`
	Amount    int             `db:"amount" json:"amount"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Total is the sum charged for the order
func (o *Order) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Amount)))
}

// Refund is a pending request to reverse an order
type Refund struct {
	ID              int64     `db:"id" json:"id"`
	OrderID         int64     `db:"order_id" json:"order_id"`
	RefundRequested bool      `db:"refund_requested" json:"refund_requested"`
	RequestTime     time.Time `db:"request_time" json:"request_time"`
}

// RefundView joins a refund with the order it targets, for the admin list
type RefundView struct {
	Refund
	UserID    int64           `db:"user_id" json:"user_id"`
	ItemID    int64           `db:"item_id" json:"item_id"`
	Amount    int             `db:"amount" json:"amount"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	OrderedAt time.Time       `db:"ordered_at" json:"ordered_at"`
}

// Refund decisions
const (
	RefundActionApprove = "approve"
	RefundActionDeny    = "deny"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
