package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventSink is where encoded events are written; *Producer satisfies it
type EventSink interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	sink EventSink
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(sink EventSink) *EventPublisher {
	return &EventPublisher{sink: sink}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.sink.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishRefundRequested publishes RefundRequested event
func (ep *EventPublisher) PublishRefundRequested(ctx context.Context, event *models.RefundRequestedEvent) error {
	return ep.sink.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishRefundApproved publishes RefundApproved event
func (ep *EventPublisher) PublishRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error {
	return ep.sink.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishRefundDenied publishes RefundDenied event
func (ep *EventPublisher) PublishRefundDenied(ctx context.Context, event *models.RefundDeniedEvent) error {
	return ep.sink.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishItemUpserted publishes ItemUpserted event
func (ep *EventPublisher) PublishItemUpserted(ctx context.Context, event *models.ItemUpsertedEvent) error {
	return ep.sink.PublishEvent(ctx, fmt.Sprintf("item-%d", event.ItemID), event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onOrderCreated   func(context.Context, *models.OrderCreatedEvent) error
	onRefundApproved func(context.Context, *models.RefundApprovedEvent) error
	onItemUpserted   func(context.Context, *models.ItemUpsertedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnRefundApproved registers a handler for RefundApproved events
func (eh *EventHandler) OnRefundApproved(handler func(context.Context, *models.RefundApprovedEvent) error) {
	eh.onRefundApproved = handler
}

// OnItemUpserted registers a handler for ItemUpserted events
func (eh *EventHandler) OnItemUpserted(handler func(context.Context, *models.ItemUpsertedEvent) error) {
	eh.onItemUpserted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeRefundApproved:
		if eh.onRefundApproved != nil {
			var event models.RefundApprovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RefundApproved event: %w", err)
			}
			return eh.onRefundApproved(ctx, &event)
		}

	case models.EventTypeItemUpserted:
		if eh.onItemUpserted != nil {
			var event models.ItemUpsertedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ItemUpserted event: %w", err)
			}
			return eh.onItemUpserted(ctx, &event)
		}
	}

	return nil
}
