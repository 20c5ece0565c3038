package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestPublishReachesSubscribedHandler(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var got []shared.Event
	bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		got = append(got, e)
		return nil
	})

	event := shared.NewXPAwardedEvent("kid-1", "task-1", 26, 26, 56, 85)
	assert.NoError(t, bus.Publish(event))
	assert.Len(t, got, 1)
	assert.Equal(t, shared.EventXPAwarded, got[0].EventType())
	assert.Equal(t, "kid-1", got[0].AggregateID())
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	calls := 0
	bus.Subscribe(shared.EventCredibilityDownvoted, func(e shared.Event) error {
		calls++
		return nil
	})

	assert.NoError(t, bus.Publish(shared.NewXPAwardedEvent("kid-1", "task-1", 26, 26, 56, 85)))
	assert.Equal(t, 0, calls)
}

func TestSubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	calls := 0
	bus.SubscribeAll(func(e shared.Event) error {
		calls++
		return nil
	})

	assert.NoError(t, bus.Publish(shared.NewXPAwardedEvent("kid-1", "task-1", 26, 26, 56, 85)))
	assert.NoError(t, bus.Publish(shared.NewCredibilityDownvotedEvent("kid-1", "task-2", "mom", -20, 80)))
	assert.Equal(t, 2, calls)
}

func TestHandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		return errors.New("notification channel down")
	})

	assert.NoError(t, bus.Publish(shared.NewXPAwardedEvent("kid-1", "task-1", 26, 26, 56, 85)))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(1), snap.TotalFailed)
}

func TestAsyncPublishCompletesBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
	})

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	for i := 0; i < 20; i++ {
		assert.NoError(t, bus.Publish(shared.NewXPAwardedEvent("kid-1", "task", 1, 1, 1, 100)))
	}

	// Close waits for pending handlers.
	assert.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, calls)
}

func TestPublishOnClosedBus(t *testing.T) {
	bus := syncBus()
	assert.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewXPAwardedEvent("kid-1", "task", 1, 1, 1, 100)), ErrEventBusClosed)
}
