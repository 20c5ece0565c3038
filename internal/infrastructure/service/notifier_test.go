package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/messaging"
)

type capturingNotifier struct {
	mu   sync.Mutex
	got  []Notification
	fail bool
}

func (c *capturingNotifier) Notify(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("channel down")
	}
	c.got = append(c.got, n)
	return nil
}

func (c *capturingNotifier) all() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.got))
	copy(out, c.got)
	return out
}

func TestNotificationHook_RendersXPAwarded(t *testing.T) {
	sink := &capturingNotifier{}
	hook := NewNotificationHook(sink, NewIDGenerator(), slog.Default())

	event := shared.NewXPAwardedEvent("child-1", "task-9", 24, 30, 124, 85)
	require.NoError(t, hook.Handle(event))

	got := sink.all()
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "child-1", got[0].RecipientID)
	assert.Equal(t, shared.EventXPAwarded, got[0].Kind)
	assert.Equal(t, "XP earned", got[0].Title)
	assert.Contains(t, got[0].Body, "24 XP")
	assert.Contains(t, got[0].Body, "124")
	assert.Equal(t, int64(1), hook.Sent())
}

func TestNotificationHook_RendersDownvote(t *testing.T) {
	sink := &capturingNotifier{}
	hook := NewNotificationHook(sink, nil, nil)

	event := shared.NewCredibilityDownvotedEvent("child-2", "task-3", "guardian-1", 20, 60)
	require.NoError(t, hook.Handle(event))

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, "Task declined", got[0].Title)
	assert.Contains(t, got[0].Body, "60")
}

func TestNotificationHook_IgnoresSystemSweepEvent(t *testing.T) {
	sink := &capturingNotifier{}
	hook := NewNotificationHook(sink, nil, nil)

	require.NoError(t, hook.Handle(shared.NewDecaySweepCompletedEvent(10, 40)))
	assert.Empty(t, sink.all())
	assert.Equal(t, int64(0), hook.Sent())
}

func TestNotificationHook_PropagatesDeliveryError(t *testing.T) {
	sink := &capturingNotifier{fail: true}
	hook := NewNotificationHook(sink, nil, nil)

	err := hook.Handle(shared.NewXPAwardedEvent("child-1", "task-1", 5, 5, 5, 100))
	require.Error(t, err)
	assert.Equal(t, int64(0), hook.Sent())
}

func TestNotificationHook_ReceivesEventsFromBus(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	sink := &capturingNotifier{}
	hook := NewNotificationHook(sink, nil, nil)
	hook.Register(bus)

	require.NoError(t, bus.Publish(shared.NewDailyDigestReadyEvent("child-1", 30, 10, 80)))
	require.NoError(t, bus.Publish(shared.NewDecaySweepCompletedEvent(1, 0)))

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, shared.EventDailyDigestReady, got[0].Kind)
	assert.Contains(t, got[0].Body, "+30")
}

func TestNotificationHook_FilterSuppressesDelivery(t *testing.T) {
	sink := &capturingNotifier{}
	hook := NewNotificationHook(sink, NewIDGenerator(), slog.Default())
	hook.SetFilter(func(kind shared.EventType, recipientID string) bool {
		return kind != shared.EventCredibilityDownvoted
	})

	require.NoError(t, hook.Handle(shared.NewCredibilityDownvotedEvent("child-1", "task-1", "mom", -20, 80)))
	require.NoError(t, hook.Handle(shared.NewXPAwardedEvent("child-1", "task-2", 10, 10, 90, 80)))

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, shared.EventXPAwarded, got[0].Kind)
	assert.Equal(t, int64(1), hook.Sent())
}

func TestUUIDGenerator_Unique(t *testing.T) {
	gen := NewIDGenerator()
	a, b := gen.GenerateID(), gen.GenerateID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
