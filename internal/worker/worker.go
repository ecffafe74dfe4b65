package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// MessageSource is the consuming side of the event bus; *broker.Consumer satisfies it
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockWorker applies store events to the Redis stock projection
type StockWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockWorker creates a new stock worker
func NewStockWorker(source MessageSource, projector *service.StockProjector) *StockWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderCreated(projector.HandleOrderCreated)
	eventHandler.OnRefundApproved(projector.HandleRefundApproved)
	eventHandler.OnItemUpserted(projector.HandleItemUpserted)

	return &StockWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *StockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock worker")
	return w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	w.logger.Info("Stopping stock worker")
	return w.source.Close()
}
