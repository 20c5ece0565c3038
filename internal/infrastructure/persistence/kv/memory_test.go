package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

func TestMemoryStoreRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.NoError(t, s.SaveInt(ctx, "counter", 42))
	v, err := s.LoadInt(ctx, "counter", 0)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	// Missing key falls back to the default.
	v, err = s.LoadInt(ctx, "missing", 7)
	assert.NoError(t, err)
	assert.Equal(t, 7, v)

	assert.NoError(t, s.SaveBool(ctx, "flag", true))
	b, err := s.LoadBool(ctx, "flag")
	assert.NoError(t, err)
	assert.True(t, b)

	when := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, s.SaveDate(ctx, "when", when))
	got, err := s.LoadDate(ctx, "when")
	assert.NoError(t, err)
	assert.True(t, got.Equal(when))

	_, err = s.LoadDate(ctx, "never")
	assert.ErrorIs(t, err, shared.ErrKeyNotFound)
}

func TestMemoryStoreRemoveAndKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.NoError(t, s.SaveInt(ctx, "a_1", 1))
	assert.NoError(t, s.SaveInt(ctx, "a_2", 2))
	assert.NoError(t, s.SaveInt(ctx, "b_1", 3))

	keys, err := s.Keys(ctx, "a_")
	assert.NoError(t, err)
	assert.Len(t, keys, 2)

	assert.NoError(t, s.Remove(ctx, "a_1"))
	keys, err = s.Keys(ctx, "a_")
	assert.NoError(t, err)
	assert.Len(t, keys, 1)

	// Removing an absent key is a no-op.
	assert.NoError(t, s.Remove(ctx, "gone"))
}

func TestCredibilityRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCredibilityRepository(NewMemoryStore())
	rules := credibility.DefaultRules()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "child-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	p := credibility.NewProfile("child-1", rules, now)
	p.ApplyDownvote(rules, "task-1", "mom", "spilled paint", now)
	assert.NoError(t, repo.Save(ctx, p))

	loaded, err := repo.Get(ctx, "child-1")
	assert.NoError(t, err)
	assert.Equal(t, p.Score, loaded.Score)
	assert.Len(t, loaded.History, 1)
	assert.Equal(t, credibility.KindDownvote, loaded.History[0].Kind)
	assert.Equal(t, "spilled paint", loaded.History[0].Notes)

	ids, err := repo.ListChildIDs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []shared.ChildID{"child-1"}, ids)

	assert.NoError(t, repo.Delete(ctx, "child-1"))
	_, err = repo.Get(ctx, "child-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestXPRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewXPRepository(store)
	rules := xp.DefaultRules()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	a := xp.NewAccount("user-1", now)
	a.Award(rules, 30, "task-1", 90, "", now)
	_, err = a.GrantDirect(rules, 50, "starter_bonus", now)
	assert.NoError(t, err)
	assert.NoError(t, repo.Save(ctx, a))

	loaded, err := repo.Get(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, 80, loaded.CurrentXP)
	assert.Len(t, loaded.Transactions, 2)
	assert.True(t, loaded.GrantsReceived["starter_bonus"])
	assert.NoError(t, loaded.CheckInvariant())

	// The balance, transactions, and grants land under separate keys.
	keys, err := store.Keys(ctx, XPBalancePrefix)
	assert.NoError(t, err)
	assert.Len(t, keys, 1)
	keys, err = store.Keys(ctx, XPTransactionsPrefix)
	assert.NoError(t, err)
	assert.Len(t, keys, 1)

	ids, err := repo.ListUserIDs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []shared.UserID{"user-1"}, ids)

	assert.NoError(t, repo.Delete(ctx, "user-1"))
	assert.Equal(t, 0, store.Len())
}
