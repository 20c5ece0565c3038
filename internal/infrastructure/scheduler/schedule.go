package scheduler

import (
	"fmt"
	"time"
)

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after the given instant.
	Next(after time.Time) time.Time

	// String renders the schedule for logs and the status endpoint.
	String() string
}

// IntervalSchedule fires at a fixed period. Periods under a second are
// rounded up so a misconfigured interval cannot spin the run loop.
type IntervalSchedule struct {
	period time.Duration
}

// NewIntervalSchedule creates a fixed-period schedule.
func NewIntervalSchedule(period time.Duration) *IntervalSchedule {
	if period < time.Second {
		period = time.Second
	}
	return &IntervalSchedule{period: period}
}

func (s *IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.period)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.period)
}
