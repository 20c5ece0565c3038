package command

import (
	"context"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPROVE TASK COMMAND
// A guardian approved a task. Credibility moves first (+bonus, streak,
// possible redemption activation); the resulting score then prices the XP
// earned for the time worked. The two ledgers lock and persist separately,
// credibility before XP.
// ══════════════════════════════════════════════════════════════════════════════

// ApproveTaskCommand contains the data for an approved task.
type ApproveTaskCommand struct {
	ChildID    shared.ChildID
	TaskID     shared.TaskID
	ReviewerID shared.ReviewerID
	Notes      string

	// TimeMinutes is the reported time worked; zero earns no XP.
	TimeMinutes int
}

// Validate validates the command.
func (c ApproveTaskCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if c.TaskID.IsEmpty() {
		return shared.NewDomainError("credibility", "ProcessApprovedTask", shared.ErrEmptyValue, "task ID is required")
	}
	if c.TimeMinutes < 0 {
		return shared.NewDomainError("credibility", "ProcessApprovedTask", shared.ErrNegativeValue, "time worked cannot be negative")
	}
	return nil
}

// ApproveTaskResult reports both ledger movements.
type ApproveTaskResult struct {
	NewScore            int
	Tier                credibility.Tier
	ApprovalStreak      int
	StreakBonusAwarded  bool
	RedemptionActivated bool

	XPEarned   int
	XPUncapped int
	NewBalance int
}

// ApproveTaskHandler handles the ApproveTaskCommand.
type ApproveTaskHandler struct {
	deps *Deps
}

// NewApproveTaskHandler creates a new ApproveTaskHandler.
func NewApproveTaskHandler(deps *Deps) *ApproveTaskHandler {
	return &ApproveTaskHandler{deps: deps}
}

// Handle executes the approval.
func (h *ApproveTaskHandler) Handle(ctx context.Context, cmd ApproveTaskCommand) (*ApproveTaskResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &ApproveTaskResult{}
	var events []shared.Event

	err := h.deps.Locks.WithLock(childLockKey(cmd.ChildID), func() error {
		profile, err := h.deps.loadOrCreateProfile(ctx, cmd.ChildID)
		if err != nil {
			return err
		}

		now := h.deps.now()
		out := profile.ApplyApproval(h.deps.CredibilityRules, cmd.TaskID, cmd.ReviewerID, cmd.Notes, now)

		if err := h.deps.CredibilityRepo.Save(ctx, profile); err != nil {
			return fmt.Errorf("approve_task: save profile: %w", err)
		}

		result.NewScore = out.NewScore
		result.Tier = profile.Tier()
		result.ApprovalStreak = out.ApprovalStreak
		result.StreakBonusAwarded = out.StreakBonusAwarded
		result.RedemptionActivated = out.RedemptionActivated

		events = append(events, shared.NewTaskApprovedEvent(
			cmd.ChildID.String(), cmd.TaskID.String(), cmd.ReviewerID.String(), out.NewScore, out.ApprovalStreak))
		if out.StreakBonusAwarded {
			events = append(events, shared.NewStreakBonusEvent(
				cmd.ChildID.String(), "approval", out.ApprovalStreak, h.deps.CredibilityRules.ApprovalStreakBonus, out.NewScore))
		}
		if out.RedemptionActivated {
			events = append(events, shared.NewRedemptionActivatedEvent(
				cmd.ChildID.String(), out.RedemptionExpiresAt, out.NewScore))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.deps.publish(events...)

	// XP earn for the time worked, priced by the post-approval score.
	if cmd.TimeMinutes > 0 {
		award, err := NewAwardXPHandler(h.deps).Handle(ctx, AwardXPCommand{
			UserID:           shared.UserID(cmd.ChildID),
			TaskID:           cmd.TaskID,
			TimeMinutes:      cmd.TimeMinutes,
			CredibilityScore: result.NewScore,
		})
		if err != nil {
			return nil, err
		}
		result.XPEarned = award.Credited
		result.XPUncapped = award.Uncapped
		result.NewBalance = award.NewBalance
	}

	h.deps.log().Info("task approved",
		"child_id", cmd.ChildID,
		"task_id", cmd.TaskID,
		"new_score", result.NewScore,
		"approval_streak", result.ApprovalStreak,
		"xp_earned", result.XPEarned)
	return result, nil
}

// EarnPreview prices a hypothetical task without mutating anything. Used by
// presentation to show "this chore is worth N XP right now".
func EarnPreview(timeMinutes, credibilityScore int) int {
	return xp.CalculateXP(timeMinutes, credibilityScore)
}
