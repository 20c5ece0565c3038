package command

import (
	"context"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNDO DOWNVOTE COMMAND
// A guardian reversed a rejection. The most recent live downvote for the
// task restores its full magnitude. A missing match is a logged no-op, not
// an error: the guardian may have double-tapped an already-reversed review.
// ══════════════════════════════════════════════════════════════════════════════

// UndoDownvoteCommand identifies the downvote to reverse.
type UndoDownvoteCommand struct {
	ChildID    shared.ChildID
	TaskID     shared.TaskID
	ReviewerID shared.ReviewerID
}

// Validate validates the command.
func (c UndoDownvoteCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if c.TaskID.IsEmpty() {
		return shared.NewDomainError("credibility", "UndoDownvote", shared.ErrEmptyValue, "task ID is required")
	}
	return nil
}

// UndoDownvoteResult reports the restoration. Matched is false when no live
// downvote existed for the task.
type UndoDownvoteResult struct {
	Matched  bool
	Restored int
	NewScore int
}

// UndoDownvoteHandler handles the UndoDownvoteCommand.
type UndoDownvoteHandler struct {
	deps *Deps
}

// NewUndoDownvoteHandler creates a new UndoDownvoteHandler.
func NewUndoDownvoteHandler(deps *Deps) *UndoDownvoteHandler {
	return &UndoDownvoteHandler{deps: deps}
}

// Handle executes the undo.
func (h *UndoDownvoteHandler) Handle(ctx context.Context, cmd UndoDownvoteCommand) (*UndoDownvoteResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *UndoDownvoteResult
	var events []shared.Event

	err := h.deps.Locks.WithLock(childLockKey(cmd.ChildID), func() error {
		profile, err := h.deps.loadOrCreateProfile(ctx, cmd.ChildID)
		if err != nil {
			return err
		}

		out, matched := profile.UndoDownvote(h.deps.CredibilityRules, cmd.TaskID, cmd.ReviewerID, h.deps.now())
		if !matched {
			result = &UndoDownvoteResult{Matched: false, NewScore: profile.Score}
			return nil
		}

		if err := h.deps.CredibilityRepo.Save(ctx, profile); err != nil {
			return fmt.Errorf("undo_downvote: save profile: %w", err)
		}

		result = &UndoDownvoteResult{Matched: true, Restored: out.Restored, NewScore: out.NewScore}
		events = append(events, shared.NewCredibilityDownvoteUndoneEvent(
			cmd.ChildID.String(), cmd.TaskID.String(), out.Restored, out.NewScore))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Matched {
		h.deps.log().Warn("undo requested with no matching downvote",
			"child_id", cmd.ChildID,
			"task_id", cmd.TaskID,
			"reviewer_id", cmd.ReviewerID)
		return result, nil
	}

	h.deps.publish(events...)
	h.deps.log().Info("downvote undone",
		"child_id", cmd.ChildID,
		"task_id", cmd.TaskID,
		"restored", result.Restored,
		"new_score", result.NewScore)
	return result, nil
}
