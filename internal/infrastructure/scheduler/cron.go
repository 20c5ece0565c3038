package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression (minute, hour,
// day-of-month, month, day-of-week) implementing Schedule. Each field is
// one bitmask, so matching a time is five bit tests.
//
//	"*/5 * * * *"  every 5 minutes
//	"0 8 * * *"    every day at 08:00
//	"30 21 * * 0"  every Sunday at 21:30
type CronExpression struct {
	expr string

	minute  uint64 // bits 0-59
	hour    uint64 // bits 0-23
	day     uint64 // bits 1-31
	month   uint64 // bits 1-12
	weekday uint64 // bits 0-6, 0 is Sunday
}

// ParseCronExpression parses a 5-field cron expression.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression %q: want 5 fields, got %d", expr, len(fields))
	}

	specs := []struct {
		name string
		lo   int
		hi   int
		out  *uint64
	}{
		{"minute", 0, 59, nil},
		{"hour", 0, 23, nil},
		{"day", 1, 31, nil},
		{"month", 1, 12, nil},
		{"weekday", 0, 6, nil},
	}

	ce := &CronExpression{expr: expr}
	specs[0].out = &ce.minute
	specs[1].out = &ce.hour
	specs[2].out = &ce.day
	specs[3].out = &ce.month
	specs[4].out = &ce.weekday

	for i, spec := range specs {
		mask, err := parseCronField(fields[i], spec.lo, spec.hi)
		if err != nil {
			return nil, fmt.Errorf("cron %s field %q: %w", spec.name, fields[i], err)
		}
		*spec.out = mask
	}
	return ce, nil
}

// parseCronField turns one comma-separated field into a bitmask. Each part
// is "*", "n", or "n-m", optionally followed by "/step".
func parseCronField(field string, lo, hi int) (uint64, error) {
	var mask uint64

	for _, part := range strings.Split(field, ",") {
		step := 1
		if i := strings.IndexByte(part, '/'); i >= 0 {
			v, err := strconv.Atoi(part[i+1:])
			if err != nil || v <= 0 {
				return 0, fmt.Errorf("bad step %q", part[i+1:])
			}
			step = v
			part = part[:i]
		}

		start, end := lo, hi
		switch {
		case part == "*":
			// full range
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			var err error
			if start, err = strconv.Atoi(bounds[0]); err != nil {
				return 0, fmt.Errorf("bad range start %q", bounds[0])
			}
			if end, err = strconv.Atoi(bounds[1]); err != nil {
				return 0, fmt.Errorf("bad range end %q", bounds[1])
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", part)
			}
			start = v
			if step == 1 {
				end = v
			}
		}

		if start < lo || end > hi || start > end {
			return 0, fmt.Errorf("out of range %d-%d", lo, hi)
		}
		for v := start; v <= end; v += step {
			mask |= 1 << uint(v)
		}
	}

	if mask == 0 {
		return 0, fmt.Errorf("matches nothing")
	}
	return mask, nil
}

// Next returns the first matching minute strictly after the given time.
// Returns the zero time if no match exists within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	limit := after.AddDate(1, 0, 1)
	for t.Before(limit) {
		if ce.month&(1<<uint(t.Month())) == 0 {
			// jump to the first minute of the next month
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
			continue
		}
		if ce.day&(1<<uint(t.Day())) == 0 || ce.weekday&(1<<uint(t.Weekday())) == 0 {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
			continue
		}
		if ce.hour&(1<<uint(t.Hour())) == 0 {
			t = t.Truncate(time.Hour).Add(time.Hour)
			continue
		}
		if ce.minute&(1<<uint(t.Minute())) == 0 {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

// String returns the raw expression.
func (ce *CronExpression) String() string {
	return ce.expr
}
