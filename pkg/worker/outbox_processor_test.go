package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/internal/repository"
	"github.com/kenko/clinic-api/internal/repository/memory"
	"github.com/kenko/clinic-api/pkg/logger"
	"github.com/kenko/clinic-api/pkg/messaging"
	"github.com/kenko/clinic-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]messaging.Message
	failOn    map[string]bool
	calls     int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		published: make(map[string][]messaging.Message),
		failOn:    make(map[string]bool),
	}
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.failOn[channel] {
		return errors.New("broker unavailable")
	}
	b.published[channel] = append(b.published[channel], message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, messaging.ErrSubscribeUnsupported
}

func (b *fakeBroker) Close() error { return nil }

func enqueue(t *testing.T, store *memory.Store, eventTypes ...string) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	err := store.RunInTx(context.Background(), func(tx repository.AppointmentTx) error {
		for _, et := range eventTypes {
			evt := &model.OutboxEvent{
				ID:             uuid.New(),
				OrganizationID: uuid.New(),
				AggregateID:    uuid.New(),
				EventType:      et,
				Payload:        json.RawMessage(`{"ok":true}`),
			}
			ids = append(ids, evt.ID)
			if err := tx.EnqueueEvent(context.Background(), evt); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func newProcessor(t *testing.T, store *memory.Store, broker messaging.Broker) (*OutboxProcessor, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	p, err := NewOutboxProcessor(store, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, logger.Nop(), m)
	require.NoError(t, err)
	return p, m
}

func TestOutboxProcessor_PublishesAndMarksProcessed(t *testing.T) {
	store := memory.NewStore()
	broker := newFakeBroker()
	ids := enqueue(t, store, model.EventAppointmentCreated, model.EventAppointmentStatusChanged)
	p, m := newProcessor(t, store, broker)

	published, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)

	require.Len(t, broker.published[model.EventAppointmentCreated], 1)
	msg := broker.published[model.EventAppointmentCreated][0]
	assert.Equal(t, ids[0].String(), msg.ID)
	assert.JSONEq(t, `{"ok":true}`, string(msg.Payload))

	pending, err := store.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestOutboxProcessor_MarksFailedAfterRetries(t *testing.T) {
	store := memory.NewStore()
	broker := newFakeBroker()
	broker.failOn[model.EventAppointmentDeleted] = true
	enqueue(t, store, model.EventAppointmentDeleted, model.EventAppointmentCreated)
	p, m := newProcessor(t, store, broker)

	published, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, 4, broker.calls)

	pending, err := store.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventAppointmentDeleted)))
}

func TestOutboxProcessor_StartStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	broker := newFakeBroker()
	enqueue(t, store, model.EventAppointmentCreated)
	p, _ := newProcessor(t, store, broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		pending, err := store.GetPendingEvents(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestNewOutboxProcessor_RejectsInvalidConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memory.NewStore(), newFakeBroker(), OutboxProcessorConfig{}, logger.Nop(), nil)
	assert.Error(t, err)
}

func TestOutboxCleanupWorker(t *testing.T) {
	store := memory.NewStore()
	ids := enqueue(t, store, model.EventAppointmentCreated, model.EventAppointmentCreated)
	require.NoError(t, store.MarkProcessed(context.Background(), ids[0]))

	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	w := NewOutboxCleanupWorker(store, OutboxCleanupConfig{Retention: time.Hour, Interval: time.Minute}, logger.Nop(), m)

	rows, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rows, err = w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsCleaned))

	pending, err := store.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
