package service

import (
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderView is an order together with its computed total
type OrderView struct {
	models.Order
	Total decimal.Decimal `json:"total"`
}

func newOrderView(o models.Order) OrderView {
	return OrderView{Order: o, Total: o.Total()}
}

func newOrderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views
}

// pageOffset converts a 1-based page number into LIMIT/OFFSET values
func pageOffset(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}

func requireUser(id auth.Identity) error {
	if id.UserID <= 0 {
		return models.ErrUnauthenticated
	}
	return nil
}

func requireAdmin(id auth.Identity) error {
	if err := requireUser(id); err != nil {
		return err
	}
	if !id.IsAdmin {
		return models.ErrForbidden
	}
	return nil
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now,
	}
}
