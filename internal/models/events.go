package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypeRefundRequested = "REFUND_REQUESTED"
	EventTypeRefundApproved  = "REFUND_APPROVED"
	EventTypeRefundDenied    = "REFUND_DENIED"
	EventTypeItemUpserted    = "ITEM_UPSERTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after a purchase commits
type OrderCreatedEvent struct {
	BaseEvent
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	ItemID    int64           `json:"item_id"`
	Amount    int             `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// RefundRequestedEvent published when a refund enters the queue
type RefundRequestedEvent struct {
	BaseEvent
	RefundID int64 `json:"refund_id"`
	OrderID  int64 `json:"order_id"`
	UserID   int64 `json:"user_id"`
}

// RefundApprovedEvent published after the ledger has been reversed
type RefundApprovedEvent struct {
	BaseEvent
	RefundID int64           `json:"refund_id"`
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	ItemID   int64           `json:"item_id"`
	Amount   int             `json:"amount"`
	Credited decimal.Decimal `json:"credited"`
}

// RefundDeniedEvent published when a refund is dropped without reversal
type RefundDeniedEvent struct {
	BaseEvent
	RefundID int64 `json:"refund_id"`
	OrderID  int64 `json:"order_id"`
}

// ItemUpsertedEvent published when an admin creates or edits an item
type ItemUpsertedEvent struct {
	BaseEvent
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}
