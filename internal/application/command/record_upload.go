package command

import (
	"context"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD TASK UPLOAD COMMAND
// A child submitted a task for review. Feeds the daily streak tracker:
// same-day repeats are idempotent, a consecutive day advances the streak,
// a gap resets it. Every tenth day grants bonus credibility.
// ══════════════════════════════════════════════════════════════════════════════

// RecordUploadCommand contains the data for a task upload.
type RecordUploadCommand struct {
	ChildID shared.ChildID
	TaskID  shared.TaskID
}

// Validate validates the command.
func (c RecordUploadCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if c.TaskID.IsEmpty() {
		return shared.NewDomainError("credibility", "ProcessTaskUpload", shared.ErrEmptyValue, "task ID is required")
	}
	return nil
}

// RecordUploadResult reports the streak transition.
type RecordUploadResult struct {
	Streak       int
	Advanced     bool
	Broken       bool
	SameDay      bool
	BonusAwarded bool
	NewScore     int
}

// RecordUploadHandler handles the RecordUploadCommand.
type RecordUploadHandler struct {
	deps *Deps
}

// NewRecordUploadHandler creates a new RecordUploadHandler.
func NewRecordUploadHandler(deps *Deps) *RecordUploadHandler {
	return &RecordUploadHandler{deps: deps}
}

// Handle executes the upload.
func (h *RecordUploadHandler) Handle(ctx context.Context, cmd RecordUploadCommand) (*RecordUploadResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *RecordUploadResult
	var events []shared.Event

	err := h.deps.Locks.WithLock(childLockKey(cmd.ChildID), func() error {
		profile, err := h.deps.loadOrCreateProfile(ctx, cmd.ChildID)
		if err != nil {
			return err
		}

		prevStreak := profile.DailyStreak
		out := profile.RecordUpload(h.deps.CredibilityRules, cmd.TaskID, h.deps.now())

		if err := h.deps.CredibilityRepo.Save(ctx, profile); err != nil {
			return fmt.Errorf("record_upload: save profile: %w", err)
		}

		result = &RecordUploadResult{
			Streak:       out.Streak,
			Advanced:     out.Advanced,
			Broken:       out.Broken,
			SameDay:      out.SameDay,
			BonusAwarded: out.BonusAwarded,
			NewScore:     out.NewScore,
		}
		if out.Broken {
			events = append(events, shared.NewDailyStreakBrokenEvent(cmd.ChildID.String(), prevStreak))
		}
		if out.Advanced {
			events = append(events, shared.NewDailyStreakAdvancedEvent(cmd.ChildID.String(), cmd.TaskID.String(), out.Streak))
		}
		if out.BonusAwarded {
			events = append(events, shared.NewStreakBonusEvent(
				cmd.ChildID.String(), "daily", out.Streak, h.deps.CredibilityRules.DailyStreakBonus, out.NewScore))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(events...)
	h.deps.log().Debug("task upload recorded",
		"child_id", cmd.ChildID,
		"task_id", cmd.TaskID,
		"daily_streak", result.Streak,
		"bonus_awarded", result.BonusAwarded)
	return result, nil
}
