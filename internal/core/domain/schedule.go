package domain

import "time"

// TimerKind distinguishes the two per-user timer families. At most one timer
// of each kind is ever armed for a user.
type TimerKind string

const (
	// TimerDailyReminder re-arms itself every day at the user's chosen local time.
	TimerDailyReminder TimerKind = "daily_reminder"
	// TimerMissedDay fires once to escalate consecutive missed days, or to
	// deliver the terminal failure notice.
	TimerMissedDay TimerKind = "missed_day"
)

// ScheduleEntry is the durable mirror of one armed timer. It exists so a
// restart can re-derive what was pending; mid-run truth lives in the
// in-memory registry only.
type ScheduleEntry struct {
	UserID         string
	Kind           TimerKind
	FireAt         time.Time
	UTCOffsetHours int
	ChallengeID    string

	// Reminder timers carry the local time of day they recur at.
	TimeOfDay *TimeOfDay

	// Missed-day timers carry the miss count observed at scheduling time and
	// whether this is the terminal "challenge failed" variant.
	MissCount int
	Terminal  bool
}

// MirrorTTL returns how long the durable mirror of the entry must survive:
// the remaining delay plus a full day, so an entry that should already have
// fired stays visible to a restart instead of silently vanishing.
func (e ScheduleEntry) MirrorTTL(now time.Time) time.Duration {
	remaining := e.FireAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining + 24*time.Hour
}
