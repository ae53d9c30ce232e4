package domain

import "time"

// ChallengeStatus enumerates the lifecycle states of a challenge.
type ChallengeStatus string

const (
	// ChallengeActive marks a challenge the user is still working through.
	ChallengeActive ChallengeStatus = "active"
	// ChallengeCompleted marks a challenge finished successfully.
	ChallengeCompleted ChallengeStatus = "completed"
	// ChallengeFailed marks a challenge terminated by consecutive misses.
	ChallengeFailed ChallengeStatus = "failed"
)

// MissThreshold is the number of consecutive missed days that fails a challenge.
const MissThreshold = 3

// Challenge is one commitment owned by a single user. At most one active
// challenge exists per user; the record is the source of truth the daily
// health check re-derives scheduler state from.
type Challenge struct {
	ID                 string
	UserID             string
	Status             ChallengeStatus
	StartedAt          time.Time
	DurationDays       int
	DaysWithoutWorkout int
	SuccessfulDays     int
	RemindersEnabled   bool
	ReminderTime       *TimeOfDay
	UpdatedAt          time.Time
}

// IsActive reports whether the challenge is still running.
func (c Challenge) IsActive() bool {
	return c.Status == ChallengeActive
}

// WantsReminder reports whether a daily reminder timer should exist for the challenge.
func (c Challenge) WantsReminder() bool {
	return c.IsActive() && c.RemindersEnabled && c.ReminderTime != nil
}

// User carries the directory attributes the scheduler needs: where to deliver
// messages and which wall clock the user lives in.
type User struct {
	ID             string
	ChatID         string
	UTCOffsetHours int
}
