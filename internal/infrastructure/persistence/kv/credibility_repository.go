package kv

import (
	"context"
	"strings"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// CredibilityRepository stores each child's profile as a single record, so a
// mutation's score and history always persist together.
type CredibilityRepository struct {
	store Store
}

// NewCredibilityRepository creates a repository over any Store backend.
func NewCredibilityRepository(store Store) *CredibilityRepository {
	return &CredibilityRepository{store: store}
}

// Get implements credibility.Repository.
func (r *CredibilityRepository) Get(ctx context.Context, childID shared.ChildID) (*credibility.Profile, error) {
	var profile credibility.Profile
	err := r.store.LoadJSON(ctx, CredibilityStateKey(childID), &profile)
	if shared.IsNotFound(err) {
		return nil, shared.ErrChildNotFound
	}
	if err != nil {
		return nil, shared.WrapError("credibility", "Get", shared.ErrStorageUnavailable, "load profile", err)
	}
	return &profile, nil
}

// Save implements credibility.Repository.
func (r *CredibilityRepository) Save(ctx context.Context, profile *credibility.Profile) error {
	if err := r.store.SaveJSON(ctx, CredibilityStateKey(profile.ChildID), profile); err != nil {
		return shared.WrapError("credibility", "Save", shared.ErrStorageUnavailable, "save profile", err)
	}
	return nil
}

// ListChildIDs implements credibility.Repository.
func (r *CredibilityRepository) ListChildIDs(ctx context.Context) ([]shared.ChildID, error) {
	keys, err := r.store.Keys(ctx, CredibilityStatePrefix)
	if err != nil {
		return nil, shared.WrapError("credibility", "ListChildIDs", shared.ErrStorageUnavailable, "list keys", err)
	}
	ids := make([]shared.ChildID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, shared.ChildID(strings.TrimPrefix(k, CredibilityStatePrefix)))
	}
	return ids, nil
}

// Delete implements credibility.Repository.
func (r *CredibilityRepository) Delete(ctx context.Context, childID shared.ChildID) error {
	return r.store.Remove(ctx, CredibilityStateKey(childID))
}
