package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Pushes every account's lifetime earned XP back into the leaderboard cache.
// Command handlers keep the cache warm best-effort; this job repairs drift
// after cache restarts or missed updates.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardJob resynchronizes the leaderboard cache from storage.
type RebuildLeaderboardJob struct {
	xpRepo  xp.Repository
	cache   xp.LeaderboardCache
	logger  *slog.Logger
	timeout time.Duration

	lastRunStats atomic.Value // *RebuildLeaderboardStats
}

// RebuildLeaderboardStats summarizes one rebuild run.
type RebuildLeaderboardStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	UsersSeen   int
	Updated     int
	Errors      int
}

// NewRebuildLeaderboardJob creates the job. Zero timeout means 15 minutes.
func NewRebuildLeaderboardJob(
	xpRepo xp.Repository,
	cache xp.LeaderboardCache,
	logger *slog.Logger,
	timeout time.Duration,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &RebuildLeaderboardJob{
		xpRepo:  xpRepo,
		cache:   cache,
		logger:  logger,
		timeout: timeout,
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Resynchronizes the XP leaderboard cache from stored accounts"
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	stats := &RebuildLeaderboardStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastRunStats.Store(stats)
	}()

	userIDs, err := j.xpRepo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("rebuild_leaderboard: list users: %w", err)
	}

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return fmt.Errorf("rebuild_leaderboard: interrupted after %d of %d users: %w",
				stats.UsersSeen, len(userIDs), ctx.Err())
		default:
		}

		stats.UsersSeen++
		account, err := j.xpRepo.Get(ctx, userID)
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			stats.Errors++
			j.logger.Error("rebuild failed for user", "user_id", userID, "error", err)
			continue
		}

		if err := j.cache.UpdateScore(ctx, userID, account.LifetimeEarned); err != nil {
			stats.Errors++
			j.logger.Error("cache update failed", "user_id", userID, "error", err)
			continue
		}
		stats.Updated++
	}

	j.logger.Info("leaderboard rebuild completed",
		"users_seen", stats.UsersSeen,
		"updated", stats.Updated,
		"errors", stats.Errors,
	)

	if stats.Errors > 0 {
		return fmt.Errorf("rebuild_leaderboard: %d of %d users failed", stats.Errors, stats.UsersSeen)
	}
	return nil
}

// LastRunStats returns stats from the most recent run, nil before the first.
func (j *RebuildLeaderboardJob) LastRunStats() *RebuildLeaderboardStats {
	stats, _ := j.lastRunStats.Load().(*RebuildLeaderboardStats)
	return stats
}
