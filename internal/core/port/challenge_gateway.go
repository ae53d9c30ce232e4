package port

import (
	"context"
	"time"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
)

// ChallengeGateway exposes the challenge state machine the scheduler drives.
// The underlying record is the single source of truth; every mutation goes
// through an atomic conditional update.
type ChallengeGateway interface {
	// GetActiveChallenge returns the user's active challenge or repository.ErrNotFound.
	GetActiveChallenge(ctx context.Context, userID string) (*domain.Challenge, error)
	// ListActiveChallenges returns every active challenge across all users.
	ListActiveChallenges(ctx context.Context) ([]domain.Challenge, error)
	// UpdateReminderTime persists a new reminder time and re-enables reminders.
	UpdateReminderTime(ctx context.Context, userID string, timeOfDay domain.TimeOfDay) error
	// DisableReminders turns the daily reminder off for the active challenge.
	DisableReminders(ctx context.Context, userID string) error
	// CheckAndIncrementMissedDays runs the idempotent miss detector for the
	// user's local yesterday. It returns true when the challenge transitioned
	// to failed as a result of this call.
	CheckAndIncrementMissedDays(ctx context.Context, userID string, utcOffsetHours int) (bool, error)
	// FailChallenge forces the active challenge into the failed state.
	FailChallenge(ctx context.Context, userID string) error
	// HasProofForDate reports whether a workout was recorded for the given
	// local calendar day.
	HasProofForDate(ctx context.Context, userID string, localDate time.Time) (bool, error)
}

// UserDirectory resolves delivery attributes for a user.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}
