package command

import (
	"context"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Credits XP for time worked, priced by the credibility score and subject to
// soft-cap diminishing returns above 1000.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand contains the data for an XP earn.
type AwardXPCommand struct {
	UserID           shared.UserID
	TaskID           shared.TaskID
	TimeMinutes      int
	CredibilityScore int
	Notes            string
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.TimeMinutes < 0 {
		return shared.NewDomainError("xp", "AwardXP", shared.ErrNegativeValue, "time worked cannot be negative")
	}
	return nil
}

// AwardXPResult reports the credited earn.
type AwardXPResult struct {
	Credited   int
	Uncapped   int
	NewBalance int
	CapApplied bool
}

// AwardXPHandler handles the AwardXPCommand.
type AwardXPHandler struct {
	deps *Deps
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(deps *Deps) *AwardXPHandler {
	return &AwardXPHandler{deps: deps}
}

// Handle executes the earn.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.TimeMinutes == 0 {
		return &AwardXPResult{}, nil
	}

	uncapped := xp.CalculateXP(cmd.TimeMinutes, cmd.CredibilityScore)

	var result *AwardXPResult
	var account *xp.Account
	var events []shared.Event

	err := h.deps.Locks.WithLock(userLockKey(cmd.UserID), func() error {
		var err error
		account, err = h.deps.loadOrCreateAccount(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		res := account.Award(h.deps.XPRules, uncapped, cmd.TaskID, cmd.CredibilityScore, cmd.Notes, h.deps.now())

		if err := h.deps.XPRepo.Save(ctx, account); err != nil {
			return fmt.Errorf("award_xp: save account: %w", err)
		}

		result = &AwardXPResult{
			Credited:   res.Credited,
			Uncapped:   res.Uncapped,
			NewBalance: res.NewBalance,
			CapApplied: res.CapApplied,
		}
		events = append(events, shared.NewXPAwardedEvent(
			cmd.UserID.String(), cmd.TaskID.String(), res.Credited, res.Uncapped, res.NewBalance, cmd.CredibilityScore))
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(events...)
	h.deps.updateLeaderboard(ctx, account)
	h.deps.log().Info("xp awarded",
		"user_id", cmd.UserID,
		"task_id", cmd.TaskID,
		"credited", result.Credited,
		"new_balance", result.NewBalance,
		"cap_applied", result.CapApplied)
	return result, nil
}
