// Package timeutil provides day-boundary helpers for the ChoreNest engine.
// Streaks, daily stats, and digest scheduling all count days in the
// household's local timezone, which is configured once at startup.
package timeutil

import (
	"fmt"
	"sync/atomic"
	"time"
)

// householdLoc holds the configured *time.Location. Defaults to UTC.
var householdLoc atomic.Pointer[time.Location]

func init() {
	householdLoc.Store(time.UTC)
}

// SetLocation configures the household timezone. Call once at startup,
// before any day arithmetic runs.
func SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	householdLoc.Store(loc)
}

// SetLocationName configures the household timezone by IANA name.
func SetLocationName(name string) error {
	if name == "" {
		SetLocation(time.UTC)
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", name, err)
	}
	SetLocation(loc)
	return nil
}

// Location returns the configured household timezone.
func Location() *time.Location {
	return householdLoc.Load()
}

// Now returns the current time in the household timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// ToLocal converts a time to the household timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(Location())
}

// Date creates a midnight time on the given date in the household timezone.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, Location())
}

// StartOfDay returns 00:00:00 of t's day in the household timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToLocal(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location())
}

// EndOfDay returns the last nanosecond of t's day in the household timezone.
func EndOfDay(t time.Time) time.Time {
	local := ToLocal(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, Location())
}

// StartOfWeek returns Monday 00:00:00 of t's week in the household timezone.
func StartOfWeek(t time.Time) time.Time {
	local := ToLocal(t)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(local.AddDate(0, 0, -(weekday - 1)))
}

// IsSameDay checks if two times fall on the same calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := ToLocal(t1), ToLocal(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// IsConsecutiveDay checks if t2 falls on the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return IsSameDay(ToLocal(t1).AddDate(0, 0, 1), t2)
}

// DaysBetween returns the absolute number of calendar days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2)
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// DaysSince returns the number of calendar days from t to now.
func DaysSince(t time.Time) int {
	return int(StartOfDay(Now()).Sub(StartOfDay(t)).Hours() / 24)
}

// IsToday checks if t falls on today's calendar day.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsYesterday checks if t falls on yesterday's calendar day.
func IsYesterday(t time.Time) bool {
	return IsSameDay(t, Now().AddDate(0, 0, -1))
}

// Common date/time layouts.
const (
	// FormatDate is the standard date layout (YYYY-MM-DD), the canonical
	// form for streak day keys.
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime layout.
	FormatDateTime = "2006-01-02 15:04"
)

// FormatDateStr formats t as YYYY-MM-DD in the household timezone.
func FormatDateStr(t time.Time) string {
	return ToLocal(t).Format(FormatDate)
}

// ParseDate parses a YYYY-MM-DD string in the household timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, Location())
}

// Notification quiet hours. Digests and nudges hold off outside this window
// so the engine never pings a child at night.
const (
	notifyWindowStart = 9  // 9:00
	notifyWindowEnd   = 21 // 21:00
)

// IsSafeNotificationTime checks if t falls inside the notification window.
func IsSafeNotificationTime(t time.Time) bool {
	hour := ToLocal(t).Hour()
	return hour >= notifyWindowStart && hour < notifyWindowEnd
}

// NextSafeNotificationTime returns the earliest time at or after t that falls
// inside the notification window.
func NextSafeNotificationTime(t time.Time) time.Time {
	local := ToLocal(t)
	hour := local.Hour()

	if hour < notifyWindowStart {
		return time.Date(local.Year(), local.Month(), local.Day(), notifyWindowStart, 0, 0, 0, Location())
	}
	if hour >= notifyWindowEnd {
		tomorrow := local.AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), notifyWindowStart, 0, 0, 0, Location())
	}
	return local
}

// FormatRelative renders a past time as a short human phrase, used in digest
// and history copy.
func FormatRelative(t time.Time) string {
	d := Now().Sub(ToLocal(t))
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
