// Package service contains outward-facing adapters: the notifier hook that
// turns domain events into host-app notifications, and small shared services
// like ID generation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ID GENERATOR
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator produces unique identifiers for notifications.
type IDGenerator interface {
	GenerateID() string
}

// UUIDGenerator implements IDGenerator with random UUIDs.
type UUIDGenerator struct{}

// NewIDGenerator creates a UUIDGenerator.
func NewIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// GenerateID returns a new random UUID string.
func (g *UUIDGenerator) GenerateID() string {
	return uuid.New().String()
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Notification is the message handed to the host app for delivery.
type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipient_id"`
	Kind        shared.EventType       `json:"kind"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Notifier delivers notifications. The host app supplies the real channel
// (push, Telegram, in-app); LoggingNotifier is the default.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LoggingNotifier writes notifications to the structured log. Used in
// development and as the fallback when no delivery channel is wired.
type LoggingNotifier struct {
	logger *slog.Logger
}

// NewLoggingNotifier creates a LoggingNotifier.
func NewLoggingNotifier(logger *slog.Logger) *LoggingNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LoggingNotifier) Notify(_ context.Context, notif Notification) error {
	n.logger.Info("notification",
		"id", notif.ID,
		"recipient", notif.RecipientID,
		"kind", notif.Kind,
		"title", notif.Title,
		"body", notif.Body,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT HOOK
// ══════════════════════════════════════════════════════════════════════════════

// NotificationHook subscribes to the event bus and renders the child-facing
// events into notifications. Events carry the post-commit state, so the hook
// never reads storage.
type NotificationHook struct {
	notifier Notifier
	ids      IDGenerator
	logger   *slog.Logger

	// filter decides per event whether the recipient gets a notification.
	// Nil means notify always.
	filter func(kind shared.EventType, recipientID string) bool

	mu   sync.RWMutex
	sent int64
}

// NewNotificationHook creates the hook.
func NewNotificationHook(notifier Notifier, ids IDGenerator, logger *slog.Logger) *NotificationHook {
	if logger == nil {
		logger = slog.Default()
	}
	if ids == nil {
		ids = NewIDGenerator()
	}
	return &NotificationHook{notifier: notifier, ids: ids, logger: logger}
}

// SetFilter installs the per-recipient notification gate. Call before
// Register.
func (h *NotificationHook) SetFilter(filter func(kind shared.EventType, recipientID string) bool) {
	h.filter = filter
}

// Register subscribes the hook to the events it renders.
func (h *NotificationHook) Register(bus shared.EventSubscriber) {
	for _, eventType := range []shared.EventType{
		shared.EventCredibilityDownvoted,
		shared.EventCredibilityStreakBonus,
		shared.EventRedemptionActivated,
		shared.EventRedemptionExpired,
		shared.EventDailyStreakBroken,
		shared.EventXPAwarded,
		shared.EventXPRedeemed,
		shared.EventDailyDigestReady,
	} {
		bus.Subscribe(eventType, h.Handle)
	}
}

// Handle renders a single event. Unrecognized event types are ignored.
func (h *NotificationHook) Handle(event shared.Event) error {
	title, body, ok := render(event)
	if !ok {
		return nil
	}
	if h.filter != nil && !h.filter(event.EventType(), event.AggregateID()) {
		return nil
	}

	notif := Notification{
		ID:          h.ids.GenerateID(),
		RecipientID: event.AggregateID(),
		Kind:        event.EventType(),
		Title:       title,
		Body:        body,
		Payload:     event.Payload(),
		CreatedAt:   time.Now(),
	}
	if err := h.notifier.Notify(context.Background(), notif); err != nil {
		return fmt.Errorf("notify %s: %w", notif.Kind, err)
	}

	h.mu.Lock()
	h.sent++
	h.mu.Unlock()
	return nil
}

// Sent returns the number of notifications delivered.
func (h *NotificationHook) Sent() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sent
}

// render maps an event to user-facing copy.
func render(event shared.Event) (title, body string, ok bool) {
	payload := event.Payload()
	switch event.EventType() {
	case shared.EventCredibilityDownvoted:
		return "Task declined",
			fmt.Sprintf("A task was declined. Your trust score is now %v.", payload["new_score"]),
			true
	case shared.EventCredibilityStreakBonus:
		return "Streak bonus!",
			fmt.Sprintf("%v in a row earned you +%v trust.", payload["streak_count"], payload["bonus"]),
			true
	case shared.EventRedemptionActivated:
		return "Comeback bonus unlocked",
			"You climbed back to the top tier. Your screen-time rate is boosted for a week!",
			true
	case shared.EventRedemptionExpired:
		return "Comeback bonus ended",
			"Your boosted screen-time rate has ended.",
			true
	case shared.EventDailyStreakBroken:
		return "Streak lost",
			fmt.Sprintf("Your %v-day streak ended. Start a new one today!", payload["previous_streak"]),
			true
	case shared.EventXPAwarded:
		return "XP earned",
			fmt.Sprintf("You earned %v XP. Balance: %v.", payload["credited"], payload["new_balance"]),
			true
	case shared.EventXPRedeemed:
		return "Screen time unlocked",
			fmt.Sprintf("You traded %v XP for %v minutes.", payload["xp_spent"], payload["minutes_granted"]),
			true
	case shared.EventDailyDigestReady:
		return "Daily summary",
			fmt.Sprintf("Today: +%v XP earned, %v XP spent.", payload["earned_today"], payload["redeemed_today"]),
			true
	default:
		return "", "", false
	}
}
