// Package saga contains multi-step business processes that span more than
// one aggregate. Each saga runs its steps in order and compensates completed
// writes when a later critical step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL CHILD SAGA
// Brings a new child into the economy:
// Validate → Check Existence → Create Profile → Create Account (+ welcome
// grant) → Seed Leaderboard → Publish Event
// ══════════════════════════════════════════════════════════════════════════════

// EnrollChildInput contains all data required to enroll a child.
type EnrollChildInput struct {
	// ChildID identifies the child in the host app (required).
	ChildID shared.ChildID

	// DisplayName is used in notifications (optional).
	DisplayName string

	// WelcomeXP is a one-time signup grant. Zero means no grant.
	WelcomeXP int
}

// Validate checks if the input is valid for enrollment.
func (i EnrollChildInput) Validate() error {
	if !i.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if i.WelcomeXP < 0 {
		return shared.ErrInvalidAmount
	}
	return nil
}

// EnrollChildResult contains the result of a successful enrollment.
type EnrollChildResult struct {
	ChildID      shared.ChildID
	InitialScore int
	WelcomeXP    int
	EnrolledAt   time.Time
}

// EnrollStep names a step of the enrollment process.
type EnrollStep string

const (
	StepValidateInput   EnrollStep = "validate_input"
	StepCheckExistence  EnrollStep = "check_existence"
	StepCreateProfile   EnrollStep = "create_profile"
	StepCreateAccount   EnrollStep = "create_account"
	StepSeedLeaderboard EnrollStep = "seed_leaderboard"
	StepPublishEvent    EnrollStep = "publish_event"
)

// EnrollChildSaga orchestrates the enrollment process. The credibility
// profile and the XP account live in separate records; the saga deletes the
// profile again if the account write fails, so a child is never half
// enrolled.
type EnrollChildSaga struct {
	credRepo  credibility.Repository
	xpRepo    xp.Repository
	cache     xp.LeaderboardCache // optional
	publisher shared.EventPublisher
	locks     *keylock.KeyLock
	logger    *slog.Logger

	credRules credibility.Rules
	xpRules   xp.Rules

	now func() time.Time
}

// EnrollChildSagaConfig wires the saga's dependencies.
type EnrollChildSagaConfig struct {
	CredibilityRepo  credibility.Repository
	XPRepo           xp.Repository
	LeaderboardCache xp.LeaderboardCache
	Publisher        shared.EventPublisher
	Locks            *keylock.KeyLock
	Logger           *slog.Logger

	CredibilityRules credibility.Rules
	XPRules          xp.Rules

	Now func() time.Time
}

// NewEnrollChildSaga creates the saga.
func NewEnrollChildSaga(cfg EnrollChildSagaConfig) *EnrollChildSaga {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Locks == nil {
		cfg.Locks = keylock.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &EnrollChildSaga{
		credRepo:  cfg.CredibilityRepo,
		xpRepo:    cfg.XPRepo,
		cache:     cfg.LeaderboardCache,
		publisher: cfg.Publisher,
		locks:     cfg.Locks,
		logger:    cfg.Logger,
		credRules: cfg.CredibilityRules,
		xpRules:   cfg.XPRules,
		now:       cfg.Now,
	}
}

// Execute runs the complete enrollment process.
func (s *EnrollChildSaga) Execute(ctx context.Context, input EnrollChildInput) (*EnrollChildResult, error) {
	if err := input.Validate(); err != nil {
		return nil, s.fail(StepValidateInput, input, err)
	}

	var result *EnrollChildResult
	err := s.locks.WithLock(string(input.ChildID), func() error {
		var err error
		result, err = s.enroll(ctx, input)
		return err
	})
	return result, err
}

func (s *EnrollChildSaga) enroll(ctx context.Context, input EnrollChildInput) (*EnrollChildResult, error) {
	now := s.now()

	// A child enrolls once. An existing profile means the host app retried
	// or double-submitted.
	_, err := s.credRepo.Get(ctx, input.ChildID)
	if err == nil {
		return nil, s.fail(StepCheckExistence, input, ErrChildAlreadyEnrolled)
	}
	if !errors.Is(err, shared.ErrChildNotFound) {
		return nil, s.fail(StepCheckExistence, input, err)
	}

	profile := credibility.NewProfile(input.ChildID, s.credRules, now)
	if err := s.credRepo.Save(ctx, profile); err != nil {
		return nil, s.fail(StepCreateProfile, input, err)
	}

	account := xp.NewAccount(shared.UserID(input.ChildID), now)
	if input.WelcomeXP > 0 {
		if _, err := account.GrantDirect(s.xpRules, input.WelcomeXP, welcomeGrantReason, now); err != nil {
			s.compensateProfile(ctx, input.ChildID)
			return nil, s.fail(StepCreateAccount, input, err)
		}
	}
	if err := s.xpRepo.Save(ctx, account); err != nil {
		s.compensateProfile(ctx, input.ChildID)
		return nil, s.fail(StepCreateAccount, input, err)
	}

	// Cache and event are post-commit: their failure never unwinds the
	// enrollment.
	if s.cache != nil {
		if err := s.cache.UpdateScore(ctx, account.UserID, account.LifetimeEarned); err != nil {
			s.logger.Warn("enrollment leaderboard seed failed",
				"child_id", input.ChildID, "error", err)
		}
	}
	if s.publisher != nil {
		event := shared.NewChildEnrolledEvent(
			string(input.ChildID), input.DisplayName, profile.Score, input.WelcomeXP)
		if err := s.publisher.Publish(event); err != nil {
			s.logger.Warn("enrollment event publish failed",
				"child_id", input.ChildID, "error", err)
		}
	}

	s.logger.Info("child enrolled",
		"child_id", input.ChildID,
		"initial_score", profile.Score,
		"welcome_xp", input.WelcomeXP,
	)

	return &EnrollChildResult{
		ChildID:      input.ChildID,
		InitialScore: profile.Score,
		WelcomeXP:    input.WelcomeXP,
		EnrolledAt:   now,
	}, nil
}

// compensateProfile removes the profile written before a failed account
// write.
func (s *EnrollChildSaga) compensateProfile(ctx context.Context, childID shared.ChildID) {
	if err := s.credRepo.Delete(ctx, childID); err != nil {
		s.logger.Error("enrollment compensation failed, profile orphaned",
			"child_id", childID, "error", err)
	}
}

func (s *EnrollChildSaga) fail(step EnrollStep, input EnrollChildInput, err error) error {
	return &EnrollmentError{
		Step:    step,
		ChildID: input.ChildID,
		Cause:   err,
	}
}

// welcomeGrantReason is the dedupe key for the signup grant.
const welcomeGrantReason = "welcome_signup"

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentError reports which step of the saga failed.
type EnrollmentError struct {
	Step    EnrollStep
	ChildID shared.ChildID
	Cause   error
}

// Error implements the error interface.
func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment of %q failed at step %q: %v", e.ChildID, e.Step, e.Cause)
}

// Unwrap returns the underlying error.
func (e *EnrollmentError) Unwrap() error {
	return e.Cause
}

// ErrChildAlreadyEnrolled is returned for a repeated enrollment.
var ErrChildAlreadyEnrolled = errors.New("saga: child already enrolled")
