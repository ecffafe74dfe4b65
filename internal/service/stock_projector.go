package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// StockProjector keeps the Redis stock projection in step with the
// events published by the order, refund and catalog services.
type StockProjector struct {
	store  ProjectionStore
	stock  StockCache
	logger *zap.Logger
}

// NewStockProjector creates a new stock projector
func NewStockProjector(store ProjectionStore, stock StockCache) *StockProjector {
	return &StockProjector{
		store:  store,
		stock:  stock,
		logger: util.GetLogger(),
	}
}

// SyncStockToRedis seeds the projection from the database
func (p *StockProjector) SyncStockToRedis(ctx context.Context) error {
	p.logger.Info("Starting stock sync to Redis")

	quantities, err := p.store.GetItemQuantities(ctx)
	if err != nil {
		return fmt.Errorf("failed to get item quantities: %w", err)
	}

	for itemID, quantity := range quantities {
		if err := p.stock.SetStock(ctx, itemID, quantity); err != nil {
			p.logger.Error("Failed to init Redis stock",
				zap.Int64("item_id", itemID),
				zap.Error(err))
		}
	}

	p.logger.Info("Stock sync completed", zap.Int("count", len(quantities)))
	return nil
}

// HandleOrderCreated takes the purchased units off the projection
func (p *StockProjector) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return p.once(ctx, event.BaseEvent, func() error {
		return p.adjust(ctx, event.ItemID, -event.Amount)
	})
}

// HandleRefundApproved puts the refunded units back
func (p *StockProjector) HandleRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error {
	return p.once(ctx, event.BaseEvent, func() error {
		return p.adjust(ctx, event.ItemID, event.Amount)
	})
}

// HandleItemUpserted overwrites the projection with the edited quantity
func (p *StockProjector) HandleItemUpserted(ctx context.Context, event *models.ItemUpsertedEvent) error {
	return p.once(ctx, event.BaseEvent, func() error {
		return p.stock.SetStock(ctx, event.ItemID, event.Quantity)
	})
}

func (p *StockProjector) adjust(ctx context.Context, itemID int64, delta int) error {
	quantity, tracked, err := p.stock.AdjustStock(ctx, itemID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	if !tracked {
		// seeded on the next sync; GetStock falls back to the DB meanwhile
		p.logger.Debug("Item not tracked in projection", zap.Int64("item_id", itemID))
		return nil
	}
	p.logger.Debug("Stock projection updated",
		zap.Int64("item_id", itemID),
		zap.Int("delta", delta),
		zap.Int("quantity", quantity))
	return nil
}

// once applies fn unless the event was already processed
func (p *StockProjector) once(ctx context.Context, base models.BaseEvent, fn func() error) error {
	processed, err := p.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if processed {
		p.logger.Info("Event already processed, skipping", zap.String("event_id", base.EventID))
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	if err := p.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	util.StockEventsProcessedTotal.WithLabelValues(base.EventType).Inc()
	return nil
}
