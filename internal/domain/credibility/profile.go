package credibility

import (
	"math"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREDIBILITY PROFILE
// Per-child aggregate: current score, append-only history, streak counters,
// and redemption-bonus state. All mutations go through the methods below;
// callers hold the child's key lock and persist the whole profile in one
// write, so score and history never diverge.
// ══════════════════════════════════════════════════════════════════════════════

// Profile is the per-child credibility state.
type Profile struct {
	ChildID shared.ChildID `json:"child_id"`
	Score   int            `json:"score"`
	History []*Event       `json:"history"`

	// ConsecutiveApprovedTasks resets to 0 exactly on a rejection, never on
	// decay or bonus events.
	ConsecutiveApprovedTasks int `json:"consecutive_approved_tasks"`

	// Daily upload streak.
	DailyStreak    int        `json:"daily_streak"`
	LastUploadDate *time.Time `json:"last_upload_date,omitempty"`

	// Redemption bonus window. ComebackArmed is set whenever the score sinks
	// under the comeback threshold; reaching the activation threshold while
	// armed opens the window and disarms it.
	HasRedemptionBonus    bool       `json:"has_redemption_bonus"`
	RedemptionBonusExpiry *time.Time `json:"redemption_bonus_expiry,omitempty"`
	ComebackArmed         bool       `json:"comeback_armed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile creates the default state for a child seen for the first time.
func NewProfile(childID shared.ChildID, r Rules, now time.Time) *Profile {
	return &Profile{
		ChildID:   childID,
		Score:     r.InitialScore,
		History:   []*Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy, used by the in-memory store to keep callers from
// aliasing stored state.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.History = make([]*Event, len(p.History))
	for i, e := range p.History {
		ev := *e
		cp.History[i] = &ev
	}
	if p.LastUploadDate != nil {
		t := *p.LastUploadDate
		cp.LastUploadDate = &t
	}
	if p.RedemptionBonusExpiry != nil {
		t := *p.RedemptionBonusExpiry
		cp.RedemptionBonusExpiry = &t
	}
	return &cp
}

// Tier returns the tier containing the current score.
func (p *Profile) Tier() Tier {
	return TierFor(p.Score)
}

// ConversionRate returns the XP-to-minutes rate: the tier multiplier times
// the redemption bonus when active. The expiry check runs first so a lapsed
// window never inflates the rate.
func (p *Profile) ConversionRate(r Rules, now time.Time) (float64, bool) {
	expired := p.expireRedemptionIfDue(now)
	rate := p.Tier().Multiplier
	if p.HasRedemptionBonus {
		rate *= r.RedemptionMultiplier
	}
	return rate, expired
}

// XPToMinutes converts an XP amount into screen-time minutes at the current
// conversion rate.
func (p *Profile) XPToMinutes(r Rules, xp int, now time.Time) (int, bool) {
	rate, expired := p.ConversionRate(r, now)
	return int(math.Round(float64(xp) * rate)), expired
}

// lastDownvoteAt returns the timestamp of the most recent downvote, or nil.
func (p *Profile) lastDownvoteAt() *time.Time {
	for i := len(p.History) - 1; i >= 0; i-- {
		if p.History[i].IsDownvote() {
			t := p.History[i].Timestamp
			return &t
		}
	}
	return nil
}

func (p *Profile) append(e *Event) {
	p.History = append(p.History, e)
	p.UpdatedAt = e.Timestamp
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutations
// ─────────────────────────────────────────────────────────────────────────────

// DownvoteOutcome reports the effect of ApplyDownvote.
type DownvoteOutcome struct {
	Penalty           int
	NewScore          int
	RedemptionExpired bool
}

// ApplyDownvote penalizes a declined task: sizes the penalty against the
// previous downvote, clamps the score, appends a downvote event, and resets
// the approval streak. The daily streak is untouched. A live redemption
// bonus closes when the new score drops under the activation threshold.
func (p *Profile) ApplyDownvote(r Rules, taskID shared.TaskID, reviewerID shared.ReviewerID, notes string, now time.Time) DownvoteOutcome {
	p.expireRedemptionIfDue(now)

	penalty := DownvotePenalty(r, p.lastDownvoteAt(), now)
	p.Score = clampTo(r, p.Score+penalty)
	p.ConsecutiveApprovedTasks = 0
	p.append(&Event{
		Kind:       KindDownvote,
		Amount:     penalty,
		TaskID:     taskID,
		ReviewerID: reviewerID,
		Notes:      notes,
		Timestamp:  now,
		NewScore:   p.Score,
	})

	if p.Score < r.RedemptionComebackScore {
		p.ComebackArmed = true
	}

	out := DownvoteOutcome{Penalty: penalty, NewScore: p.Score}
	if p.HasRedemptionBonus && p.Score < r.RedemptionActivationScore {
		p.closeRedemption(now, "score_dropped")
		out.RedemptionExpired = true
	}
	return out
}

// UndoOutcome reports the effect of UndoDownvote.
type UndoOutcome struct {
	Restored int
	NewScore int
}

// UndoDownvote restores the most recent matching downvote for the task and
// reviewer. Returns false when no live matching downvote exists; the caller
// logs and moves on rather than failing the request. The no-match path
// leaves the profile untouched, so skipping the save is safe; a lapsed
// redemption bonus is only expired once an undo will actually be persisted.
func (p *Profile) UndoDownvote(r Rules, taskID shared.TaskID, reviewerID shared.ReviewerID, now time.Time) (UndoOutcome, bool) {
	var match *Event
	for i := len(p.History) - 1; i >= 0; i-- {
		e := p.History[i]
		if !e.IsDownvote() || e.Undone {
			continue
		}
		if e.TaskID != taskID {
			continue
		}
		if !reviewerID.IsEmpty() && !e.ReviewerID.IsEmpty() && e.ReviewerID != reviewerID {
			continue
		}
		match = e
		break
	}
	if match == nil {
		return UndoOutcome{}, false
	}

	p.expireRedemptionIfDue(now)

	restored := -match.Amount
	match.Undone = true
	p.Score = clampTo(r, p.Score+restored)
	p.append(&Event{
		Kind:       KindDownvoteUndone,
		Amount:     restored,
		TaskID:     taskID,
		ReviewerID: reviewerID,
		Timestamp:  now,
		NewScore:   p.Score,
	})
	return UndoOutcome{Restored: restored, NewScore: p.Score}, true
}

// ApprovalOutcome reports the effect of ApplyApproval.
type ApprovalOutcome struct {
	NewScore            int
	ApprovalStreak      int
	StreakBonusAwarded  bool
	RedemptionActivated bool
	RedemptionExpiresAt time.Time
}

// ApplyApproval rewards an approved task: +ApprovalBonus to the score, a
// streak increment, and possibly an approval-streak bonus. Climbing back to
// the activation threshold after sinking under the comeback threshold opens
// the redemption bonus window.
func (p *Profile) ApplyApproval(r Rules, taskID shared.TaskID, reviewerID shared.ReviewerID, notes string, now time.Time) ApprovalOutcome {
	p.expireRedemptionIfDue(now)

	if p.Score < r.RedemptionComebackScore {
		p.ComebackArmed = true
	}
	p.Score = clampTo(r, p.Score+r.ApprovalBonus)
	p.ConsecutiveApprovedTasks++
	p.append(&Event{
		Kind:       KindApprovedTask,
		Amount:     r.ApprovalBonus,
		TaskID:     taskID,
		ReviewerID: reviewerID,
		Notes:      notes,
		Timestamp:  now,
		NewScore:   p.Score,
	})

	out := ApprovalOutcome{ApprovalStreak: p.ConsecutiveApprovedTasks}

	if ShouldAwardStreakBonus(p.ConsecutiveApprovedTasks, r.ApprovalStreakInterval) {
		p.Score = clampTo(r, p.Score+r.ApprovalStreakBonus)
		p.append(&Event{
			Kind:        KindStreakBonus,
			Amount:      r.ApprovalStreakBonus,
			TaskID:      taskID,
			Timestamp:   now,
			NewScore:    p.Score,
			StreakCount: p.ConsecutiveApprovedTasks,
		})
		out.StreakBonusAwarded = true
	}

	if !p.HasRedemptionBonus &&
		p.ComebackArmed &&
		p.Score >= r.RedemptionActivationScore {
		expiry := now.AddDate(0, 0, r.RedemptionWindowDays)
		p.HasRedemptionBonus = true
		p.RedemptionBonusExpiry = &expiry
		p.ComebackArmed = false
		p.append(&Event{
			Kind:      KindRedemptionActivate,
			Timestamp: now,
			NewScore:  p.Score,
		})
		out.RedemptionActivated = true
		out.RedemptionExpiresAt = expiry
	}

	out.NewScore = p.Score
	return out
}

// ApplyDecay forgives matured downvote penalties as of now. Returns the
// points recovered; 0 means the profile was not touched and the caller may
// skip the save.
func (p *Profile) ApplyDecay(r Rules, now time.Time) int {
	recovered, matured := DecayRecovery(r, p.History, now)
	if recovered <= 0 {
		return 0
	}
	p.expireRedemptionIfDue(now)
	for _, e := range matured {
		e.Decayed = true
	}
	p.Score = clampTo(r, p.Score+recovered)
	p.append(&Event{
		Kind:      KindTimeDecayRecovery,
		Amount:    recovered,
		Timestamp: now,
		NewScore:  p.Score,
	})
	return recovered
}

// UploadOutcome reports the effect of RecordUpload.
type UploadOutcome struct {
	StreakTransition
	BonusAwarded bool
	NewScore     int
}

// RecordUpload feeds the daily streak state machine with a task upload.
// Same-day uploads are idempotent; a consecutive day advances the streak and
// every DailyStreakInterval-th day grants credibility; a gap resets to 1.
// LastUploadDate is stamped unconditionally.
func (p *Profile) RecordUpload(r Rules, taskID shared.TaskID, now time.Time) UploadOutcome {
	p.expireRedemptionIfDue(now)

	tr := NextDailyStreak(p.DailyStreak, p.LastUploadDate, now, r.Loc())
	p.DailyStreak = tr.Streak
	stamp := now
	p.LastUploadDate = &stamp
	p.UpdatedAt = now

	out := UploadOutcome{StreakTransition: tr, NewScore: p.Score}
	if tr.Advanced && ShouldAwardStreakBonus(tr.Streak, r.DailyStreakInterval) {
		p.Score = clampTo(r, p.Score+r.DailyStreakBonus)
		p.append(&Event{
			Kind:        KindStreakBonus,
			Amount:      r.DailyStreakBonus,
			TaskID:      taskID,
			Timestamp:   now,
			NewScore:    p.Score,
			StreakCount: tr.Streak,
		})
		out.BonusAwarded = true
		out.NewScore = p.Score
	}
	return out
}

// ExpireRedemptionIfDue closes a lapsed redemption window. Exposed for query
// paths that read the conversion rate without another mutation.
func (p *Profile) ExpireRedemptionIfDue(now time.Time) bool {
	return p.expireRedemptionIfDue(now)
}

func (p *Profile) expireRedemptionIfDue(now time.Time) bool {
	if !p.HasRedemptionBonus || p.RedemptionBonusExpiry == nil {
		return false
	}
	if now.Before(*p.RedemptionBonusExpiry) {
		return false
	}
	p.closeRedemption(now, "window_elapsed")
	return true
}

func (p *Profile) closeRedemption(now time.Time, reason string) {
	p.HasRedemptionBonus = false
	p.RedemptionBonusExpiry = nil
	p.append(&Event{
		Kind:      KindRedemptionExpired,
		Notes:     reason,
		Timestamp: now,
		NewScore:  p.Score,
	})
}
