// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Credibility events
	EventCredibilityDownvoted    EventType = "credibility.downvoted"
	EventCredibilityDownvoteUndo EventType = "credibility.downvote_undone"
	EventCredibilityApproved     EventType = "credibility.task_approved"
	EventCredibilityStreakBonus  EventType = "credibility.streak_bonus"
	EventCredibilityDecayed      EventType = "credibility.decay_recovered"
	EventCredibilityTierChanged  EventType = "credibility.tier_changed"

	// Redemption bonus events
	EventRedemptionActivated EventType = "credibility.redemption_activated"
	EventRedemptionExpired   EventType = "credibility.redemption_expired"

	// Daily streak events
	EventDailyStreakAdvanced EventType = "streak.advanced"
	EventDailyStreakBroken   EventType = "streak.broken"

	// XP events
	EventXPAwarded  EventType = "xp.awarded"
	EventXPRedeemed EventType = "xp.redeemed"
	EventXPGranted  EventType = "xp.granted_direct"
	EventSoftCapHit EventType = "xp.soft_cap_reached"

	// System events
	EventChildEnrolled       EventType = "system.child_enrolled"
	EventDecaySweepCompleted EventType = "system.decay_sweep_completed"
	EventDailyDigestReady    EventType = "system.daily_digest_ready"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Credibility Events
// ═══════════════════════════════════════════════════════════════════════════

// CredibilityDownvotedEvent is emitted when a guardian declines a task.
type CredibilityDownvotedEvent struct {
	BaseEvent
	TaskID     string `json:"task_id"`
	ReviewerID string `json:"reviewer_id"`
	Penalty    int    `json:"penalty"`
	NewScore   int    `json:"new_score"`
}

// Payload implements Event interface.
func (e CredibilityDownvotedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id":     e.TaskID,
		"reviewer_id": e.ReviewerID,
		"penalty":     e.Penalty,
		"new_score":   e.NewScore,
	}
}

// NewCredibilityDownvotedEvent creates a new CredibilityDownvotedEvent.
func NewCredibilityDownvotedEvent(childID, taskID, reviewerID string, penalty, newScore int) CredibilityDownvotedEvent {
	return CredibilityDownvotedEvent{
		BaseEvent:  NewBaseEvent(EventCredibilityDownvoted, childID),
		TaskID:     taskID,
		ReviewerID: reviewerID,
		Penalty:    penalty,
		NewScore:   newScore,
	}
}

// CredibilityDownvoteUndoneEvent is emitted when a downvote is reversed.
type CredibilityDownvoteUndoneEvent struct {
	BaseEvent
	TaskID   string `json:"task_id"`
	Restored int    `json:"restored"`
	NewScore int    `json:"new_score"`
}

// Payload implements Event interface.
func (e CredibilityDownvoteUndoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id":   e.TaskID,
		"restored":  e.Restored,
		"new_score": e.NewScore,
	}
}

// NewCredibilityDownvoteUndoneEvent creates a new CredibilityDownvoteUndoneEvent.
func NewCredibilityDownvoteUndoneEvent(childID, taskID string, restored, newScore int) CredibilityDownvoteUndoneEvent {
	return CredibilityDownvoteUndoneEvent{
		BaseEvent: NewBaseEvent(EventCredibilityDownvoteUndo, childID),
		TaskID:    taskID,
		Restored:  restored,
		NewScore:  newScore,
	}
}

// TaskApprovedEvent is emitted when a guardian approves a task.
type TaskApprovedEvent struct {
	BaseEvent
	TaskID         string `json:"task_id"`
	ReviewerID     string `json:"reviewer_id"`
	NewScore       int    `json:"new_score"`
	ApprovalStreak int    `json:"approval_streak"`
}

// Payload implements Event interface.
func (e TaskApprovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id":         e.TaskID,
		"reviewer_id":     e.ReviewerID,
		"new_score":       e.NewScore,
		"approval_streak": e.ApprovalStreak,
	}
}

// NewTaskApprovedEvent creates a new TaskApprovedEvent.
func NewTaskApprovedEvent(childID, taskID, reviewerID string, newScore, approvalStreak int) TaskApprovedEvent {
	return TaskApprovedEvent{
		BaseEvent:      NewBaseEvent(EventCredibilityApproved, childID),
		TaskID:         taskID,
		ReviewerID:     reviewerID,
		NewScore:       newScore,
		ApprovalStreak: approvalStreak,
	}
}

// StreakBonusEvent is emitted when either streak grants bonus credibility.
type StreakBonusEvent struct {
	BaseEvent
	StreakKind  string `json:"streak_kind"` // "approval" or "daily"
	StreakCount int    `json:"streak_count"`
	Bonus       int    `json:"bonus"`
	NewScore    int    `json:"new_score"`
}

// Payload implements Event interface.
func (e StreakBonusEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"streak_kind":  e.StreakKind,
		"streak_count": e.StreakCount,
		"bonus":        e.Bonus,
		"new_score":    e.NewScore,
	}
}

// NewStreakBonusEvent creates a new StreakBonusEvent.
func NewStreakBonusEvent(childID, streakKind string, streakCount, bonus, newScore int) StreakBonusEvent {
	return StreakBonusEvent{
		BaseEvent:   NewBaseEvent(EventCredibilityStreakBonus, childID),
		StreakKind:  streakKind,
		StreakCount: streakCount,
		Bonus:       bonus,
		NewScore:    newScore,
	}
}

// DecayRecoveredEvent is emitted when the decay pass forgives old penalties.
type DecayRecoveredEvent struct {
	BaseEvent
	Recovered int `json:"recovered"`
	NewScore  int `json:"new_score"`
}

// Payload implements Event interface.
func (e DecayRecoveredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"recovered": e.Recovered,
		"new_score": e.NewScore,
	}
}

// NewDecayRecoveredEvent creates a new DecayRecoveredEvent.
func NewDecayRecoveredEvent(childID string, recovered, newScore int) DecayRecoveredEvent {
	return DecayRecoveredEvent{
		BaseEvent: NewBaseEvent(EventCredibilityDecayed, childID),
		Recovered: recovered,
		NewScore:  newScore,
	}
}

// RedemptionActivatedEvent is emitted when the 7-day redemption bonus opens.
type RedemptionActivatedEvent struct {
	BaseEvent
	ExpiresAt time.Time `json:"expires_at"`
	Score     int       `json:"score"`
}

// Payload implements Event interface.
func (e RedemptionActivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"expires_at": e.ExpiresAt,
		"score":      e.Score,
	}
}

// NewRedemptionActivatedEvent creates a new RedemptionActivatedEvent.
func NewRedemptionActivatedEvent(childID string, expiresAt time.Time, score int) RedemptionActivatedEvent {
	return RedemptionActivatedEvent{
		BaseEvent: NewBaseEvent(EventRedemptionActivated, childID),
		ExpiresAt: expiresAt,
		Score:     score,
	}
}

// RedemptionExpiredEvent is emitted when the redemption bonus closes.
type RedemptionExpiredEvent struct {
	BaseEvent
	Reason string `json:"reason"` // "window_elapsed" or "score_dropped"
	Score  int    `json:"score"`
}

// Payload implements Event interface.
func (e RedemptionExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"reason": e.Reason,
		"score":  e.Score,
	}
}

// NewRedemptionExpiredEvent creates a new RedemptionExpiredEvent.
func NewRedemptionExpiredEvent(childID, reason string, score int) RedemptionExpiredEvent {
	return RedemptionExpiredEvent{
		BaseEvent: NewBaseEvent(EventRedemptionExpired, childID),
		Reason:    reason,
		Score:     score,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Daily Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// DailyStreakAdvancedEvent is emitted when a consecutive-day upload lands.
type DailyStreakAdvancedEvent struct {
	BaseEvent
	TaskID string `json:"task_id"`
	Streak int    `json:"streak"`
}

// Payload implements Event interface.
func (e DailyStreakAdvancedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id": e.TaskID,
		"streak":  e.Streak,
	}
}

// NewDailyStreakAdvancedEvent creates a new DailyStreakAdvancedEvent.
func NewDailyStreakAdvancedEvent(childID, taskID string, streak int) DailyStreakAdvancedEvent {
	return DailyStreakAdvancedEvent{
		BaseEvent: NewBaseEvent(EventDailyStreakAdvanced, childID),
		TaskID:    taskID,
		Streak:    streak,
	}
}

// DailyStreakBrokenEvent is emitted when an upload gap resets the streak.
type DailyStreakBrokenEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
}

// Payload implements Event interface.
func (e DailyStreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
	}
}

// NewDailyStreakBrokenEvent creates a new DailyStreakBrokenEvent.
func NewDailyStreakBrokenEvent(childID string, previousStreak int) DailyStreakBrokenEvent {
	return DailyStreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventDailyStreakBroken, childID),
		PreviousStreak: previousStreak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted when task work earns XP.
type XPAwardedEvent struct {
	BaseEvent
	TaskID      string `json:"task_id"`
	Credited    int    `json:"credited"`
	Uncapped    int    `json:"uncapped"`
	NewBalance  int    `json:"new_balance"`
	Credibility int    `json:"credibility"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id":     e.TaskID,
		"credited":    e.Credited,
		"uncapped":    e.Uncapped,
		"new_balance": e.NewBalance,
		"credibility": e.Credibility,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(userID, taskID string, credited, uncapped, newBalance, credibility int) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:   NewBaseEvent(EventXPAwarded, userID),
		TaskID:      taskID,
		Credited:    credited,
		Uncapped:    uncapped,
		NewBalance:  newBalance,
		Credibility: credibility,
	}
}

// XPRedeemedEvent is emitted when XP is exchanged for minutes.
type XPRedeemedEvent struct {
	BaseEvent
	XPSpent        int `json:"xp_spent"`
	MinutesGranted int `json:"minutes_granted"`
	NewBalance     int `json:"new_balance"`
}

// Payload implements Event interface.
func (e XPRedeemedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"xp_spent":        e.XPSpent,
		"minutes_granted": e.MinutesGranted,
		"new_balance":     e.NewBalance,
	}
}

// NewXPRedeemedEvent creates a new XPRedeemedEvent.
func NewXPRedeemedEvent(userID string, xpSpent, minutesGranted, newBalance int) XPRedeemedEvent {
	return XPRedeemedEvent{
		BaseEvent:      NewBaseEvent(EventXPRedeemed, userID),
		XPSpent:        xpSpent,
		MinutesGranted: minutesGranted,
		NewBalance:     newBalance,
	}
}

// XPGrantedEvent is emitted for one-time direct grants.
type XPGrantedEvent struct {
	BaseEvent
	Amount     int    `json:"amount"`
	Reason     string `json:"reason"`
	NewBalance int    `json:"new_balance"`
}

// Payload implements Event interface.
func (e XPGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":      e.Amount,
		"reason":      e.Reason,
		"new_balance": e.NewBalance,
	}
}

// NewXPGrantedEvent creates a new XPGrantedEvent.
func NewXPGrantedEvent(userID string, amount int, reason string, newBalance int) XPGrantedEvent {
	return XPGrantedEvent{
		BaseEvent:  NewBaseEvent(EventXPGranted, userID),
		Amount:     amount,
		Reason:     reason,
		NewBalance: newBalance,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// ChildEnrolledEvent is emitted when a child joins the economy.
type ChildEnrolledEvent struct {
	BaseEvent
	DisplayName  string `json:"display_name"`
	InitialScore int    `json:"initial_score"`
	WelcomeXP    int    `json:"welcome_xp"`
}

// Payload implements Event interface.
func (e ChildEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"display_name":  e.DisplayName,
		"initial_score": e.InitialScore,
		"welcome_xp":    e.WelcomeXP,
	}
}

// NewChildEnrolledEvent creates a new ChildEnrolledEvent.
func NewChildEnrolledEvent(childID, displayName string, initialScore, welcomeXP int) ChildEnrolledEvent {
	return ChildEnrolledEvent{
		BaseEvent:    NewBaseEvent(EventChildEnrolled, childID),
		DisplayName:  displayName,
		InitialScore: initialScore,
		WelcomeXP:    welcomeXP,
	}
}

// DecaySweepCompletedEvent is emitted after a scheduled decay pass.
type DecaySweepCompletedEvent struct {
	BaseEvent
	ChildrenScanned int `json:"children_scanned"`
	PointsRecovered int `json:"points_recovered"`
}

// Payload implements Event interface.
func (e DecaySweepCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"children_scanned": e.ChildrenScanned,
		"points_recovered": e.PointsRecovered,
	}
}

// NewDecaySweepCompletedEvent creates a new DecaySweepCompletedEvent.
func NewDecaySweepCompletedEvent(scanned, recovered int) DecaySweepCompletedEvent {
	return DecaySweepCompletedEvent{
		BaseEvent:       NewBaseEvent(EventDecaySweepCompleted, "system"),
		ChildrenScanned: scanned,
		PointsRecovered: recovered,
	}
}

// DailyDigestReadyEvent is emitted when a user's end-of-day summary is built.
type DailyDigestReadyEvent struct {
	BaseEvent
	EarnedToday   int `json:"earned_today"`
	RedeemedToday int `json:"redeemed_today"`
	Balance       int `json:"balance"`
}

// Payload implements Event interface.
func (e DailyDigestReadyEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"earned_today":   e.EarnedToday,
		"redeemed_today": e.RedeemedToday,
		"balance":        e.Balance,
	}
}

// NewDailyDigestReadyEvent creates a new DailyDigestReadyEvent.
func NewDailyDigestReadyEvent(userID string, earned, redeemed, balance int) DailyDigestReadyEvent {
	return DailyDigestReadyEvent{
		BaseEvent:     NewBaseEvent(EventDailyDigestReady, userID),
		EarnedToday:   earned,
		RedeemedToday: redeemed,
		Balance:       balance,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a domain event. Handlers run post-commit: their
// failure must never roll back the ledger mutation that produced the event.
type EventHandler func(event Event) error

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber subscribes handlers to event types.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler)
	SubscribeAll(handler EventHandler)
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// MarshalEvent serializes an event for transport or storage.
func MarshalEvent(event Event) ([]byte, error) {
	envelope := map[string]interface{}{
		"type":         event.EventType(),
		"occurred_at":  event.OccurredAt(),
		"aggregate_id": event.AggregateID(),
		"payload":      event.Payload(),
	}
	return json.Marshal(envelope)
}
