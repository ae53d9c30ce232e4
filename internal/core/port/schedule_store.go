package port

import (
	"context"
	"time"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
)

// ScheduleStore is the durable mirror of every armed timer, keyed by
// (user, kind). It is written through on arm/cancel and consulted only at
// bootstrap; absence of an entry is never an error because the daily health
// check re-derives correctness from the challenge records.
type ScheduleStore interface {
	// Save upserts the mirror entry with the supplied TTL.
	Save(ctx context.Context, entry domain.ScheduleEntry, ttl time.Duration) error
	// Remove deletes the mirror entry. Removing a missing entry is a no-op.
	Remove(ctx context.Context, userID string, kind domain.TimerKind) error
	// ListAll returns every mirrored entry of the given kind.
	ListAll(ctx context.Context, kind domain.TimerKind) ([]domain.ScheduleEntry, error)
	// Clear drops every mirrored entry of every kind.
	Clear(ctx context.Context) error
}
