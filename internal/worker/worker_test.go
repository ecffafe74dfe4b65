package worker

import (
	"context"
	"encoding/json"
	"testing"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (s *sliceSource) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, msg := range s.messages {
		s.errs = append(s.errs, handler(ctx, msg))
	}
	return nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type projectionStore struct {
	quantities map[int64]int
	processed  map[string]bool
}

func (p *projectionStore) GetItemQuantities(context.Context) (map[int64]int, error) {
	return p.quantities, nil
}

func (p *projectionStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	return p.processed[eventID], nil
}

func (p *projectionStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	p.processed[eventID] = true
	return nil
}

type stockMap map[int64]int

func (m stockMap) SetStock(_ context.Context, itemID int64, quantity int) error {
	m[itemID] = quantity
	return nil
}

func (m stockMap) AdjustStock(_ context.Context, itemID int64, delta int) (int, bool, error) {
	q, ok := m[itemID]
	if !ok {
		return 0, false, nil
	}
	m[itemID] = q + delta
	return m[itemID], true, nil
}

func (m stockMap) GetStock(_ context.Context, itemID int64) (int, error) {
	return m[itemID], nil
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestStockWorkerAppliesEvents(t *testing.T) {
	store := &projectionStore{quantities: map[int64]int{7: 5}, processed: map[string]bool{}}
	stock := stockMap{}
	projector := service.NewStockProjector(store, stock)
	require.NoError(t, projector.SyncStockToRedis(context.Background()))

	source := &sliceSource{messages: []kafka.Message{
		message(t, models.OrderCreatedEvent{
			BaseEvent: models.BaseEvent{EventID: "a", EventType: models.EventTypeOrderCreated},
			ItemID:    7,
			Amount:    2,
		}),
		message(t, models.RefundDeniedEvent{
			BaseEvent: models.BaseEvent{EventID: "b", EventType: models.EventTypeRefundDenied},
		}),
		message(t, models.RefundApprovedEvent{
			BaseEvent: models.BaseEvent{EventID: "c", EventType: models.EventTypeRefundApproved},
			ItemID:    7,
			Amount:    1,
		}),
	}}

	w := NewStockWorker(source, projector)
	require.NoError(t, w.Start(context.Background()))

	for _, err := range source.errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 4, stock[7])
	assert.True(t, store.processed["a"])
	assert.False(t, store.processed["b"])

	require.NoError(t, w.Stop())
	assert.True(t, source.closed)
}

func TestStockWorkerRejectsGarbage(t *testing.T) {
	store := &projectionStore{processed: map[string]bool{}}
	source := &sliceSource{messages: []kafka.Message{{Value: []byte("not json")}}}

	w := NewStockWorker(source, service.NewStockProjector(store, stockMap{}))
	require.NoError(t, w.Start(context.Background()))

	require.Len(t, source.errs, 1)
	assert.Error(t, source.errs[0])
}
