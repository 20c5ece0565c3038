package eventhandler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorenest/chorenest-engine/internal/application/command"
	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/kv"
	"github.com/chorenest/chorenest-engine/pkg/keylock"
)

type milestoneEnv struct {
	handler *OnXPAwardedHandler
	xpRepo  xp.Repository
}

func newMilestoneEnv() *milestoneEnv {
	store := kv.NewMemoryStore()
	credRules := credibility.DefaultRules()
	credRules.Location = time.UTC
	xpRules := xp.DefaultRules()
	xpRules.Location = time.UTC

	xpRepo := kv.NewXPRepository(store)
	deps := &command.Deps{
		CredibilityRepo:  kv.NewCredibilityRepository(store),
		XPRepo:           xpRepo,
		Locks:            keylock.New(),
		CredibilityRules: credRules,
		XPRules:          xpRules,
		Now:              func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &milestoneEnv{
		handler: NewOnXPAwardedHandler(xpRepo, command.NewGrantXPHandler(deps), nil, logger),
		xpRepo:  xpRepo,
	}
}

func (e *milestoneEnv) seedAccount(t *testing.T, userID shared.UserID, lifetime int) {
	t.Helper()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	account := xp.NewAccount(userID, now)
	account.CurrentXP = lifetime
	account.LifetimeEarned = lifetime
	require.NoError(t, e.xpRepo.Save(context.Background(), account))
}

func TestOnXPAwarded_GrantsMilestoneBonus(t *testing.T) {
	env := newMilestoneEnv()
	env.seedAccount(t, "child-1", 120)

	err := env.handler.Handle(shared.NewXPAwardedEvent("child-1", "task-1", 20, 20, 120, 100))
	require.NoError(t, err)

	account, err := env.xpRepo.Get(context.Background(), "child-1")
	require.NoError(t, err)
	assert.Equal(t, 130, account.CurrentXP, "100 XP milestone pays 10 bonus")
	assert.True(t, account.GrantsReceived["milestone_100_xp"])
}

func TestOnXPAwarded_BelowFirstMilestone(t *testing.T) {
	env := newMilestoneEnv()
	env.seedAccount(t, "child-1", 60)

	require.NoError(t, env.handler.Handle(shared.NewXPAwardedEvent("child-1", "task-1", 10, 10, 60, 100)))

	account, err := env.xpRepo.Get(context.Background(), "child-1")
	require.NoError(t, err)
	assert.Equal(t, 60, account.CurrentXP)
	assert.Empty(t, account.GrantsReceived)
}

func TestOnXPAwarded_MilestonePaysOnlyOnce(t *testing.T) {
	env := newMilestoneEnv()
	env.seedAccount(t, "child-1", 150)

	require.NoError(t, env.handler.Handle(shared.NewXPAwardedEvent("child-1", "task-1", 20, 20, 150, 100)))
	require.NoError(t, env.handler.Handle(shared.NewXPAwardedEvent("child-1", "task-2", 20, 20, 170, 100)))

	account, err := env.xpRepo.Get(context.Background(), "child-1")
	require.NoError(t, err)
	assert.Equal(t, 160, account.CurrentXP, "replayed milestone must not double-pay")
}

func TestOnXPAwarded_CrossingSeveralMilestonesAtOnce(t *testing.T) {
	env := newMilestoneEnv()
	env.seedAccount(t, "child-1", 600)

	require.NoError(t, env.handler.Handle(shared.NewXPAwardedEvent("child-1", "task-1", 100, 100, 600, 100)))

	account, err := env.xpRepo.Get(context.Background(), "child-1")
	require.NoError(t, err)
	assert.True(t, account.GrantsReceived["milestone_100_xp"])
	assert.True(t, account.GrantsReceived["milestone_500_xp"])
	assert.False(t, account.GrantsReceived["milestone_1000_xp"])
	assert.Equal(t, 635, account.CurrentXP)
}
