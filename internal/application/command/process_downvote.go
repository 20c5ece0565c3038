package command

import (
	"context"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS DOWNVOTE COMMAND
// A guardian declined a task. The penalty sizes against the previous
// downvote, the approval streak resets, and a live redemption bonus may
// close. The daily streak is never touched here.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessDownvoteCommand contains the data for a declined task.
type ProcessDownvoteCommand struct {
	ChildID    shared.ChildID
	TaskID     shared.TaskID
	ReviewerID shared.ReviewerID
	Notes      string
}

// Validate validates the command.
func (c ProcessDownvoteCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if c.TaskID.IsEmpty() {
		return shared.NewDomainError("credibility", "ProcessDownvote", shared.ErrEmptyValue, "task ID is required")
	}
	return nil
}

// ProcessDownvoteResult reports the applied penalty.
type ProcessDownvoteResult struct {
	Penalty           int
	NewScore          int
	Tier              credibility.Tier
	RedemptionExpired bool
}

// ProcessDownvoteHandler handles the ProcessDownvoteCommand.
type ProcessDownvoteHandler struct {
	deps *Deps
}

// NewProcessDownvoteHandler creates a new ProcessDownvoteHandler.
func NewProcessDownvoteHandler(deps *Deps) *ProcessDownvoteHandler {
	return &ProcessDownvoteHandler{deps: deps}
}

// Handle executes the downvote.
func (h *ProcessDownvoteHandler) Handle(ctx context.Context, cmd ProcessDownvoteCommand) (*ProcessDownvoteResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *ProcessDownvoteResult
	var events []shared.Event

	err := h.deps.Locks.WithLock(childLockKey(cmd.ChildID), func() error {
		profile, err := h.deps.loadOrCreateProfile(ctx, cmd.ChildID)
		if err != nil {
			return err
		}

		now := h.deps.now()
		out := profile.ApplyDownvote(h.deps.CredibilityRules, cmd.TaskID, cmd.ReviewerID, cmd.Notes, now)

		if err := h.deps.CredibilityRepo.Save(ctx, profile); err != nil {
			return fmt.Errorf("process_downvote: save profile: %w", err)
		}

		result = &ProcessDownvoteResult{
			Penalty:           out.Penalty,
			NewScore:          out.NewScore,
			Tier:              profile.Tier(),
			RedemptionExpired: out.RedemptionExpired,
		}
		events = append(events, shared.NewCredibilityDownvotedEvent(
			cmd.ChildID.String(), cmd.TaskID.String(), cmd.ReviewerID.String(), out.Penalty, out.NewScore))
		if out.RedemptionExpired {
			events = append(events, shared.NewRedemptionExpiredEvent(cmd.ChildID.String(), "score_dropped", out.NewScore))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(events...)
	h.deps.log().Info("downvote processed",
		"child_id", cmd.ChildID,
		"task_id", cmd.TaskID,
		"penalty", result.Penalty,
		"new_score", result.NewScore)
	return result, nil
}
