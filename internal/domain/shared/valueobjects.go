// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Identifiers are opaque strings supplied by the host app. The engine only
// requires them to be non-empty and reasonably shaped; it never parses them.
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]{0,63}$`)

// ChildID identifies a child whose credibility the engine tracks.
type ChildID string

// IsValid checks if the child ID has an acceptable shape.
func (c ChildID) IsValid() bool {
	return idRegex.MatchString(string(c))
}

// String returns the string representation.
func (c ChildID) String() string {
	return string(c)
}

// IsEmpty checks if the ID is empty.
func (c ChildID) IsEmpty() bool {
	return c == ""
}

// NewChildID creates a new ChildID with validation.
func NewChildID(id string) (ChildID, error) {
	cid := ChildID(strings.TrimSpace(id))
	if !cid.IsValid() {
		return "", ErrInvalidChildID
	}
	return cid, nil
}

// UserID identifies an XP ledger owner. Children are users too; the separate
// type keeps the two ledgers from being wired to the wrong key by accident.
type UserID string

// IsValid checks if the user ID has an acceptable shape.
func (u UserID) IsValid() bool {
	return idRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// TaskID identifies a reviewed household task. May be empty on events that
// are not tied to a task (decay recovery, streak bonus).
type TaskID string

// String returns the string representation.
func (t TaskID) String() string {
	return string(t)
}

// IsEmpty checks if the ID is empty.
func (t TaskID) IsEmpty() bool {
	return t == ""
}

// ReviewerID identifies the guardian who made a review decision.
type ReviewerID string

// String returns the string representation.
func (r ReviewerID) String() string {
	return string(r)
}

// IsEmpty checks if the ID is empty.
func (r ReviewerID) IsEmpty() bool {
	return r == ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Time Range Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a half-open interval [From, To) used for daily stats and
// history queries.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains checks whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Duration returns the span of the range.
func (r TimeRange) Duration() time.Duration {
	return r.To.Sub(r.From)
}

// Today returns the current calendar day in the given location.
func Today(loc *time.Location) TimeRange {
	now := time.Now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return TimeRange{From: from, To: from.AddDate(0, 0, 1)}
}

// DayOf returns the calendar day containing t in the given location.
func DayOf(t time.Time, loc *time.Location) TimeRange {
	local := t.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return TimeRange{From: from, To: from.AddDate(0, 0, 1)}
}

// LastNDays returns the range covering the previous n calendar days up to now.
func LastNDays(n int, loc *time.Location) TimeRange {
	now := time.Now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -n+1)
	return TimeRange{From: from, To: now}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination carries offset/limit for history and leaderboard queries.
type Pagination struct {
	Offset int
	Limit  int
}

// DefaultPagination returns the standard page size.
func DefaultPagination() Pagination {
	return Pagination{Offset: 0, Limit: 50}
}

// Normalize clamps the pagination into sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	return p
}
