package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(historySize int) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Logger:      discardLogger(),
		Timezone:    time.UTC,
		HistorySize: historySize,
	})
}

type countingJob struct {
	name string

	mu   sync.Mutex
	runs int
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counting job " + j.name }

func (j *countingJob) Run(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

// fireOnce is due once shortly after registration, then a day out.
type fireOnce struct {
	mu    sync.Mutex
	armed bool
}

func (s *fireOnce) Next(after time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed {
		return after.Add(24 * time.Hour)
	}
	s.armed = true
	return after.Add(10 * time.Millisecond)
}

func (s *fireOnce) String() string { return "fire-once" }

func TestScheduler_RegisterValidation(t *testing.T) {
	s := newTestScheduler(0)
	sched := NewIntervalSchedule(time.Minute)

	assert.ErrorIs(t, s.Register(nil, sched), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "sweep"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "sweep"}, sched))
	assert.ErrorIs(t, s.Register(&countingJob{name: "sweep"}, sched), ErrDuplicateJob)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(0)

	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(0)
	job := &countingJob{name: "digest"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	rec, err := s.RunNow(context.Background(), "digest")
	require.NoError(t, err)
	assert.Equal(t, "digest", rec.Job)
	assert.True(t, rec.OK)
	assert.True(t, rec.Manual)
	assert.Equal(t, 1, job.count())

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1), infos[0].Runs)
	assert.Equal(t, int64(0), infos[0].Failures)

	_, err = s.RunNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduler_RunNowSurfacesJobError(t *testing.T) {
	s := newTestScheduler(0)
	job := &countingJob{name: "sweep", err: errors.New("store unavailable")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	rec, err := s.RunNow(context.Background(), "sweep")
	require.Error(t, err)
	assert.False(t, rec.OK)
	assert.Equal(t, "store unavailable", rec.Error)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1), infos[0].Failures)
	assert.Equal(t, "store unavailable", infos[0].LastError)

	snap := s.Metrics()
	assert.Equal(t, int64(1), snap.Runs)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, 0.0, snap.SuccessRate)
}

func TestScheduler_HistoryNewestFirstAndCapped(t *testing.T) {
	s := newTestScheduler(3)
	good := &countingJob{name: "good"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	require.NoError(t, s.Register(good, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(bad, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 4; i++ {
		_, _ = s.RunNow(context.Background(), "good")
	}
	_, _ = s.RunNow(context.Background(), "bad")

	recs := s.History(0)
	require.Len(t, recs, 3)
	assert.Equal(t, "bad", recs[0].Job)
	assert.False(t, recs[0].OK)
	assert.Equal(t, "good", recs[1].Job)
	assert.Equal(t, "good", recs[2].Job)

	recs = s.History(1)
	require.Len(t, recs, 1)
	assert.Equal(t, "bad", recs[0].Job)
}

func TestScheduler_RunsDueJob(t *testing.T) {
	s := newTestScheduler(0)
	job := &countingJob{name: "rebuild"}
	require.NoError(t, s.Register(job, &fireOnce{}))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	require.Eventually(t, func() bool { return job.count() >= 1 },
		2*time.Second, 10*time.Millisecond)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.GreaterOrEqual(t, infos[0].Runs, int64(1))
}

func TestScheduler_MetricsAggregateAcrossJobs(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&countingJob{name: "b"}, NewIntervalSchedule(time.Hour)))

	_, _ = s.RunNow(context.Background(), "a")
	_, _ = s.RunNow(context.Background(), "a")
	_, _ = s.RunNow(context.Background(), "b")

	snap := s.Metrics()
	assert.Equal(t, int64(3), snap.Runs)
	assert.Equal(t, int64(0), snap.Failures)
	assert.Equal(t, 1.0, snap.SuccessRate)
	assert.NotEmpty(t, snap.AvgRunTime)
}

func TestIntervalSchedule(t *testing.T) {
	base := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	s := NewIntervalSchedule(5 * time.Minute)
	assert.Equal(t, base.Add(5*time.Minute), s.Next(base))
	assert.Equal(t, "every 5m0s", s.String())

	// sub-second periods are clamped
	fast := NewIntervalSchedule(time.Millisecond)
	assert.Equal(t, base.Add(time.Second), fast.Next(base))
}

func TestParseCronExpression(t *testing.T) {
	// 2026-03-03 is a Tuesday.
	base := time.Date(2026, time.March, 3, 9, 20, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/15 * * * *", time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)},
		{"0 8 * * *", time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC)},
		{"30 21 * * 0", time.Date(2026, time.March, 8, 21, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{"5,35 9 * * *", time.Date(2026, time.March, 3, 9, 35, 0, 0, time.UTC)},
		{"0 9-11 * * *", time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		ce, err := ParseCronExpression(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, ce.Next(base), tt.expr)
		assert.Equal(t, tt.expr, ce.String())
	}
}

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"61 * * * *",
		"* 24 * * *",
		"*/0 * * * *",
		"a * * * *",
		"10-5 * * * *",
		"* * * * 7",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}
}
