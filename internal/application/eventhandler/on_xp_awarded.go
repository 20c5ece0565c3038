// Package eventhandler contains handlers for domain events that trigger
// follow-up application work.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chorenest/chorenest-engine/internal/application/command"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP AWARDED HANDLER
// Watches lifetime XP milestones and issues a one-time bonus grant when a
// child crosses one. The grant reason doubles as the dedupe key, so replayed
// events cannot double-pay a milestone.
// ═══════════════════════════════════════════════════════════════════════════

// Milestone pairs a lifetime XP threshold with its bonus.
type Milestone struct {
	LifetimeXP int
	Bonus      int
}

// DefaultMilestones returns the production milestone ladder.
func DefaultMilestones() []Milestone {
	return []Milestone{
		{LifetimeXP: 100, Bonus: 10},
		{LifetimeXP: 500, Bonus: 25},
		{LifetimeXP: 1000, Bonus: 50},
		{LifetimeXP: 5000, Bonus: 100},
	}
}

// OnXPAwardedHandler reacts to xp.awarded events.
type OnXPAwardedHandler struct {
	xpRepo     xp.Repository
	grants     *command.GrantXPHandler
	milestones []Milestone
	logger     *slog.Logger
}

// NewOnXPAwardedHandler creates the handler. Nil milestones means the
// default ladder.
func NewOnXPAwardedHandler(xpRepo xp.Repository, grants *command.GrantXPHandler, milestones []Milestone, logger *slog.Logger) *OnXPAwardedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if milestones == nil {
		milestones = DefaultMilestones()
	}
	return &OnXPAwardedHandler{
		xpRepo:     xpRepo,
		grants:     grants,
		milestones: milestones,
		logger:     logger,
	}
}

// Register subscribes the handler to the events it reacts to.
func (h *OnXPAwardedHandler) Register(bus shared.EventSubscriber) {
	bus.Subscribe(shared.EventXPAwarded, h.Handle)
}

// Handle checks the post-award lifetime total against the milestone ladder.
// Handlers run post-commit, so the stored account already includes the award
// that produced this event.
func (h *OnXPAwardedHandler) Handle(event shared.Event) error {
	ctx := context.Background()
	userID := shared.UserID(event.AggregateID())

	account, err := h.xpRepo.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", userID, err)
	}

	for _, m := range h.milestones {
		if account.LifetimeEarned < m.LifetimeXP {
			break
		}
		reason := fmt.Sprintf("milestone_%d_xp", m.LifetimeXP)
		_, err := h.grants.Handle(ctx, command.GrantXPCommand{
			UserID: userID,
			Amount: m.Bonus,
			Reason: reason,
		})
		if errors.Is(err, shared.ErrAlreadyGranted) {
			continue
		}
		if err != nil {
			return fmt.Errorf("milestone grant %s for %s: %w", reason, userID, err)
		}
		h.logger.Info("milestone bonus granted",
			"user_id", userID,
			"milestone", m.LifetimeXP,
			"bonus", m.Bonus,
		)
	}
	return nil
}
