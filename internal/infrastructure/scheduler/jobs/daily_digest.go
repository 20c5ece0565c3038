package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chorenest/chorenest-engine/internal/application/query"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY DIGEST JOB
// Publishes one digest event per user with today's earn/spend totals. The
// host app's notifier turns these into the evening family summary.
// ══════════════════════════════════════════════════════════════════════════════

// DailyDigestJob computes per-user daily stats and emits digest events.
type DailyDigestJob struct {
	xpRepo    xp.Repository
	stats     *query.DailyStatsHandler
	publisher shared.EventPublisher
	logger    *slog.Logger
	timeout   time.Duration

	lastRunStats atomic.Value // *DailyDigestStats
}

// DailyDigestStats summarizes one digest run.
type DailyDigestStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	UsersSeen   int
	Digests     int
	Errors      int
}

// NewDailyDigestJob creates the job. Zero timeout means 30 minutes.
func NewDailyDigestJob(
	xpRepo xp.Repository,
	stats *query.DailyStatsHandler,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	timeout time.Duration,
) *DailyDigestJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &DailyDigestJob{
		xpRepo:    xpRepo,
		stats:     stats,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

// Name implements scheduler.Job.
func (j *DailyDigestJob) Name() string {
	return "daily_digest"
}

// Description implements scheduler.Job.
func (j *DailyDigestJob) Description() string {
	return "Emits a daily XP and credibility digest event per user"
}

// Run implements scheduler.Job.
func (j *DailyDigestJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	stats := &DailyDigestStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastRunStats.Store(stats)
	}()

	userIDs, err := j.xpRepo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("daily_digest: list users: %w", err)
	}

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return fmt.Errorf("daily_digest: interrupted after %d of %d users: %w",
				stats.UsersSeen, len(userIDs), ctx.Err())
		default:
		}

		stats.UsersSeen++
		dto, err := j.stats.Handle(ctx, userID)
		if err != nil {
			stats.Errors++
			j.logger.Error("daily digest failed for user", "user_id", userID, "error", err)
			continue
		}

		if j.publisher != nil {
			event := shared.NewDailyDigestReadyEvent(
				userID.String(), dto.EarnedToday, dto.RedeemedToday, dto.CurrentBalance)
			if err := j.publisher.Publish(event); err != nil {
				j.logger.Warn("digest event publish failed", "user_id", userID, "error", err)
				continue
			}
		}
		stats.Digests++
	}

	j.logger.Info("daily digest completed",
		"users_seen", stats.UsersSeen,
		"digests", stats.Digests,
		"errors", stats.Errors,
	)

	if stats.Errors > 0 {
		return fmt.Errorf("daily_digest: %d of %d users failed", stats.Errors, stats.UsersSeen)
	}
	return nil
}

// LastRunStats returns stats from the most recent run, nil before the first.
func (j *DailyDigestJob) LastRunStats() *DailyDigestStats {
	stats, _ := j.lastRunStats.Load().(*DailyDigestStats)
	return stats
}
