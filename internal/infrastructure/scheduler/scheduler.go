// Package scheduler runs the ChoreNest engine's periodic jobs: the
// credibility decay sweep, the daily digest, and the leaderboard rebuild.
// Jobs register with a Schedule and fire on a timer that sleeps until the
// earliest due run; the status server can also trigger a job on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNilJob is returned when registering a nil job.
	ErrNilJob = errors.New("job cannot be nil")

	// ErrNilSchedule is returned when registering a job without a schedule.
	ErrNilSchedule = errors.New("schedule cannot be nil")

	// ErrDuplicateJob is returned when a job name is already registered.
	ErrDuplicateJob = errors.New("job already registered")

	// ErrUnknownJob is returned when a job name is not registered.
	ErrUnknownJob = errors.New("unknown job")

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrNotRunning is returned by Stop on a stopped scheduler.
	ErrNotRunning = errors.New("scheduler not running")
)

// Job is a unit of periodic work.
type Job interface {
	// Name uniquely identifies the job within a scheduler.
	Name() string

	// Run executes the job. The context carries the scheduler's lifetime;
	// jobs apply their own per-run timeouts on top of it.
	Run(ctx context.Context) error

	// Description is a one-line human summary for the status endpoint.
	Description() string
}

// RunRecord describes one completed job execution.
type RunRecord struct {
	Job       string    `json:"job"`
	Manual    bool      `json:"manual,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Took      string    `json:"took"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

// JobInfo is a point-in-time view of a registered job.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	Runs        int64     `json:"runs"`
	Failures    int64     `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
}

// MetricsSnapshot aggregates execution counters across all jobs.
type MetricsSnapshot struct {
	Runs        int64   `json:"runs"`
	Failures    int64   `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
	AvgRunTime  string  `json:"avg_run_time,omitempty"`
}

// entry is the scheduler's bookkeeping for one registered job.
type entry struct {
	job      Job
	schedule Schedule

	nextRun  time.Time
	lastRun  time.Time
	lastErr  error
	runs     int64
	failures int64
	totalDur time.Duration
	busy     bool
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone drives schedule evaluation. Defaults to time.Local.
	Timezone *time.Location

	// HistorySize caps the retained run records. Defaults to 200.
	HistorySize int
}

// Scheduler owns a set of jobs and runs each when its schedule matures.
type Scheduler struct {
	logger *slog.Logger
	loc    *time.Location

	mu      sync.RWMutex
	entries map[string]*entry
	history []RunRecord
	histCap int

	running bool
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	runs    sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := config.Timezone
	if loc == nil {
		loc = time.Local
	}
	histCap := config.HistorySize
	if histCap <= 0 {
		histCap = 200
	}
	return &Scheduler{
		logger:  logger.With("component", "scheduler"),
		loc:     loc,
		entries: make(map[string]*entry),
		histCap: histCap,
		wake:    make(chan struct{}, 1),
	}
}

// Register adds a job. Registration is allowed while running; the loop
// wakes up to account for the new job's next run.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	if _, ok := s.entries[job.Name()]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name())
	}
	e := &entry{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(s.now()),
	}
	s.entries[job.Name()] = e
	s.mu.Unlock()

	s.logger.Info("job registered",
		"job", job.Name(),
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	s.poke()
	return nil
}

// Start launches the run loop. The loop stops when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs", len(s.ListJobs()), "timezone", s.loc.String())
	go s.loop(loopCtx, done)
	return nil
}

// Stop halts the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.runs.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether the run loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// maxIdle bounds how long the loop sleeps with nothing due, so newly
// registered jobs and clock adjustments are picked up promptly.
const maxIdle = 30 * time.Second

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}

		for _, e := range s.claimDue() {
			s.runs.Add(1)
			go func(e *entry) {
				defer s.runs.Done()
				s.execute(ctx, e, false)
			}(e)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.untilNextDue())
	}
}

// claimDue advances the next-run time of every matured job and returns the
// jobs to execute. A job still busy from a previous tick is skipped; its
// schedule has already moved on, so the missed run is simply dropped.
func (s *Scheduler) claimDue() []*entry {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*entry
	for _, e := range s.entries {
		if e.nextRun.After(now) {
			continue
		}
		e.nextRun = e.schedule.Next(now)
		if e.busy {
			s.logger.Warn("job still running, skipping tick", "job", e.job.Name())
			continue
		}
		e.busy = true
		due = append(due, e)
	}
	return due
}

func (s *Scheduler) untilNextDue() time.Duration {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	wait := maxIdle
	for _, e := range s.entries {
		if d := e.nextRun.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// RunNow executes a registered job immediately, outside its schedule, and
// blocks until it finishes. The run is counted and recorded like any other.
func (s *Scheduler) RunNow(ctx context.Context, name string) (RunRecord, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return RunRecord{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if e.busy {
		s.mu.Unlock()
		return RunRecord{}, fmt.Errorf("job %s is already running", name)
	}
	e.busy = true
	s.mu.Unlock()

	s.logger.Info("manual run requested", "job", name)
	rec := s.execute(ctx, e, true)
	if rec.Error != "" {
		return rec, errors.New(rec.Error)
	}
	return rec, nil
}

// execute runs the job, releases its busy flag, and records the outcome.
// The caller must have claimed the entry (set busy) beforehand.
func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) RunRecord {
	started := s.now()
	err := e.job.Run(ctx)
	took := s.now().Sub(started)

	rec := RunRecord{
		Job:       e.job.Name(),
		Manual:    manual,
		StartedAt: started,
		Took:      took.Round(time.Millisecond).String(),
		OK:        err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}

	s.mu.Lock()
	e.busy = false
	e.lastRun = started
	e.lastErr = err
	e.runs++
	e.totalDur += took
	if err != nil {
		e.failures++
	}
	s.history = append(s.history, rec)
	if len(s.history) > s.histCap {
		s.history = s.history[len(s.history)-s.histCap:]
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", rec.Job, "took", rec.Took, "error", err.Error())
	} else {
		s.logger.Info("job completed", "job", rec.Job, "took", rec.Took)
	}
	return rec
}

// ListJobs returns all registered jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		info := JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			Runs:        e.runs,
			Failures:    e.failures,
		}
		if e.lastErr != nil {
			info.LastError = e.lastErr.Error()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// History returns up to limit of the most recent run records, newest
// first. A non-positive limit returns everything retained.
func (s *Scheduler) History(limit int) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]RunRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.history[len(s.history)-1-i]
	}
	return out
}

// Metrics aggregates run counters across all registered jobs.
func (s *Scheduler) Metrics() MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap MetricsSnapshot
	var total time.Duration
	for _, e := range s.entries {
		snap.Runs += e.runs
		snap.Failures += e.failures
		total += e.totalDur
	}
	if snap.Runs > 0 {
		snap.SuccessRate = float64(snap.Runs-snap.Failures) / float64(snap.Runs)
		snap.AvgRunTime = (total / time.Duration(snap.Runs)).Round(time.Millisecond).String()
	}
	return snap
}

func (s *Scheduler) now() time.Time {
	return time.Now().In(s.loc)
}

// poke nudges the loop without blocking when nothing is listening.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
