// Package jobs contains the engine's scheduled jobs: the credibility decay
// sweep, the daily digest, and the leaderboard rebuild.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chorenest/chorenest-engine/internal/application/command"
	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECAY SWEEP JOB
// Walks every stored credibility profile and applies time decay recovery to
// downvotes old enough to fade. Each child commits under its own lock, so a
// failing profile never blocks the rest of the sweep.
// ══════════════════════════════════════════════════════════════════════════════

// DecaySweepJob restores credibility lost to old downvotes.
type DecaySweepJob struct {
	credRepo  credibility.Repository
	handler   *command.ApplyDecayHandler
	publisher shared.EventPublisher
	logger    *slog.Logger
	timeout   time.Duration

	lastRunStats atomic.Value // *DecaySweepStats
}

// DecaySweepStats summarizes one sweep run.
type DecaySweepStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	ChildrenSeen   int
	ChildrenHealed int
	PointsRestored int
	Errors         int
}

// NewDecaySweepJob creates the job. The timeout bounds a whole sweep;
// zero means an hour.
func NewDecaySweepJob(
	credRepo credibility.Repository,
	handler *command.ApplyDecayHandler,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	timeout time.Duration,
) *DecaySweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &DecaySweepJob{
		credRepo:  credRepo,
		handler:   handler,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

// Name implements scheduler.Job.
func (j *DecaySweepJob) Name() string {
	return "decay_sweep"
}

// Description implements scheduler.Job.
func (j *DecaySweepJob) Description() string {
	return "Applies time decay recovery to every child's old downvotes"
}

// Run implements scheduler.Job.
func (j *DecaySweepJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	stats := &DecaySweepStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastRunStats.Store(stats)
	}()

	childIDs, err := j.credRepo.ListChildIDs(ctx)
	if err != nil {
		return fmt.Errorf("decay_sweep: list children: %w", err)
	}

	for _, childID := range childIDs {
		select {
		case <-ctx.Done():
			return fmt.Errorf("decay_sweep: interrupted after %d of %d children: %w",
				stats.ChildrenSeen, len(childIDs), ctx.Err())
		default:
		}

		stats.ChildrenSeen++
		result, err := j.handler.Handle(ctx, command.ApplyDecayCommand{ChildID: childID})
		if err != nil {
			stats.Errors++
			j.logger.Error("decay sweep failed for child", "child_id", childID, "error", err)
			continue
		}
		if result.Recovered > 0 {
			stats.ChildrenHealed++
			stats.PointsRestored += result.Recovered
		}
	}

	j.logger.Info("decay sweep completed",
		"children_seen", stats.ChildrenSeen,
		"children_healed", stats.ChildrenHealed,
		"points_restored", stats.PointsRestored,
		"errors", stats.Errors,
	)

	if j.publisher != nil {
		event := shared.NewDecaySweepCompletedEvent(stats.ChildrenSeen, stats.PointsRestored)
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("decay sweep event publish failed", "error", err)
		}
	}

	if stats.Errors > 0 {
		return fmt.Errorf("decay_sweep: %d of %d children failed", stats.Errors, stats.ChildrenSeen)
	}
	return nil
}

// LastRunStats returns stats from the most recent run, nil before the first.
func (j *DecaySweepJob) LastRunStats() *DecaySweepStats {
	stats, _ := j.lastRunStats.Load().(*DecaySweepStats)
	return stats
}
