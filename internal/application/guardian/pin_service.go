// Package guardian contains the guardian-facing authorization pieces: the PIN
// that gates sensitive review actions (downvotes, undo, direct grants).
package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/kv"
)

// ══════════════════════════════════════════════════════════════════════════════
// GUARDIAN PIN SERVICE
// Stores a bcrypt hash of the guardian's PIN; the plaintext never persists.
// ══════════════════════════════════════════════════════════════════════════════

const (
	minPINLength = 4
	maxPINLength = 8
)

// PINService manages guardian PINs over the key-value store.
type PINService struct {
	store  kv.Store
	logger *slog.Logger
	cost   int
}

// NewPINService creates a new PINService with the default bcrypt cost.
func NewPINService(store kv.Store, logger *slog.Logger) *PINService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PINService{store: store, logger: logger, cost: bcrypt.DefaultCost}
}

// SetPIN stores the hash of a new PIN.
// Returns shared.ErrPINAlreadySet when one exists; use ChangePIN instead.
func (s *PINService) SetPIN(ctx context.Context, guardianID string, pin string) error {
	if guardianID == "" {
		return shared.NewDomainError("guardian", "set_pin", shared.ErrValidation, "guardian ID is required")
	}
	if err := validatePIN(pin); err != nil {
		return err
	}

	key := kv.GuardianPINKey(guardianID)
	if has, err := s.HasPIN(ctx, guardianID); err != nil {
		return err
	} else if has {
		return shared.ErrPINAlreadySet
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return fmt.Errorf("guardian: hash pin: %w", err)
	}
	if err := s.store.SaveJSON(ctx, key, string(hash)); err != nil {
		return fmt.Errorf("guardian: store pin: %w", err)
	}
	s.logger.Info("guardian pin set", "guardian_id", guardianID)
	return nil
}

// VerifyPIN checks a PIN attempt against the stored hash.
// Returns shared.ErrPINNotSet when no PIN exists, shared.ErrPINMismatch on a
// wrong attempt, nil on success.
func (s *PINService) VerifyPIN(ctx context.Context, guardianID string, pin string) error {
	if guardianID == "" {
		return shared.NewDomainError("guardian", "verify_pin", shared.ErrValidation, "guardian ID is required")
	}
	hash, err := s.loadHash(ctx, guardianID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		s.logger.Warn("guardian pin mismatch", "guardian_id", guardianID)
		return shared.ErrPINMismatch
	}
	return nil
}

// ChangePIN replaces the stored PIN after verifying the current one.
func (s *PINService) ChangePIN(ctx context.Context, guardianID string, currentPIN, newPIN string) error {
	if err := s.VerifyPIN(ctx, guardianID, currentPIN); err != nil {
		return err
	}
	if err := validatePIN(newPIN); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), s.cost)
	if err != nil {
		return fmt.Errorf("guardian: hash pin: %w", err)
	}
	if err := s.store.SaveJSON(ctx, kv.GuardianPINKey(guardianID), string(hash)); err != nil {
		return fmt.Errorf("guardian: store pin: %w", err)
	}
	s.logger.Info("guardian pin changed", "guardian_id", guardianID)
	return nil
}

// HasPIN reports whether the guardian has set a PIN.
func (s *PINService) HasPIN(ctx context.Context, guardianID string) (bool, error) {
	_, err := s.loadHash(ctx, guardianID)
	if err == nil {
		return true, nil
	}
	if shared.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *PINService) loadHash(ctx context.Context, guardianID string) (string, error) {
	var hash string
	err := s.store.LoadJSON(ctx, kv.GuardianPINKey(guardianID), &hash)
	if shared.IsNotFound(err) || (err == nil && hash == "") {
		return "", shared.ErrPINNotSet
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func validatePIN(pin string) error {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return shared.ErrWeakPIN
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return shared.ErrWeakPIN
		}
	}
	return nil
}
