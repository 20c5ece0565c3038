package command

import (
	"context"
	"fmt"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY DECAY COMMAND
// Forgives matured downvote penalties for one child. Not self-triggering:
// the scheduled sweep job and app-foreground hooks call it. A recovery of
// zero writes nothing.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyDecayCommand names the child to process.
type ApplyDecayCommand struct {
	ChildID shared.ChildID
}

// Validate validates the command.
func (c ApplyDecayCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	return nil
}

// ApplyDecayResult reports the recovery.
type ApplyDecayResult struct {
	Recovered int
	NewScore  int
}

// ApplyDecayHandler handles the ApplyDecayCommand.
type ApplyDecayHandler struct {
	deps *Deps
}

// NewApplyDecayHandler creates a new ApplyDecayHandler.
func NewApplyDecayHandler(deps *Deps) *ApplyDecayHandler {
	return &ApplyDecayHandler{deps: deps}
}

// Handle executes the decay pass for one child.
func (h *ApplyDecayHandler) Handle(ctx context.Context, cmd ApplyDecayCommand) (*ApplyDecayResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *ApplyDecayResult
	var events []shared.Event

	err := h.deps.Locks.WithLock(childLockKey(cmd.ChildID), func() error {
		profile, err := h.deps.CredibilityRepo.Get(ctx, cmd.ChildID)
		if shared.IsNotFound(err) {
			// Nothing stored, nothing to decay.
			result = &ApplyDecayResult{}
			return nil
		}
		if err != nil {
			return err
		}

		recovered := profile.ApplyDecay(h.deps.CredibilityRules, h.deps.now())
		if recovered == 0 {
			result = &ApplyDecayResult{NewScore: profile.Score}
			return nil
		}

		if err := h.deps.CredibilityRepo.Save(ctx, profile); err != nil {
			return fmt.Errorf("apply_decay: save profile: %w", err)
		}

		result = &ApplyDecayResult{Recovered: recovered, NewScore: profile.Score}
		events = append(events, shared.NewDecayRecoveredEvent(cmd.ChildID.String(), recovered, profile.Score))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Recovered > 0 {
		h.deps.publish(events...)
		h.deps.log().Info("decay recovery applied",
			"child_id", cmd.ChildID,
			"recovered", result.Recovered,
			"new_score", result.NewScore)
	}
	return result, nil
}
