package credibility

import (
	"context"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Implementations live in infrastructure/persistence and store the whole
// profile as one record, so a mutation's score and history land together.
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists credibility profiles.
type Repository interface {
	// Get returns the child's profile.
	// Returns shared.ErrChildNotFound when none exists yet.
	Get(ctx context.Context, childID shared.ChildID) (*Profile, error)

	// Save writes the full profile, creating it if absent.
	Save(ctx context.Context, profile *Profile) error

	// ListChildIDs returns every child with a stored profile. Used by the
	// decay sweep to iterate children one lock at a time.
	ListChildIDs(ctx context.Context) ([]shared.ChildID, error)

	// Delete removes a child's profile. Explicit account/test reset only.
	Delete(ctx context.Context, childID shared.ChildID) error
}
