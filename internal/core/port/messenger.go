package port

import (
	"context"
	"errors"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
)

var (
	// ErrChannelBlocked indicates the recipient has blocked delivery. The
	// condition is permanent: all timers for the user must be cancelled.
	ErrChannelBlocked = errors.New("messenger: channel blocked by recipient")
	// ErrRateLimited indicates a transient transport throttle. The next
	// scheduled occurrence retries naturally; nothing is cancelled.
	ErrRateLimited = errors.New("messenger: rate limited")
)

// Messenger is the abstract chat transport the engine consumes. How messages
// reach the user is outside the scheduling core.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string) error
	// SendPhoto delivers an image with caption and action buttons.
	SendPhoto(ctx context.Context, payload domain.NotificationPayload) error
}
