package port

import (
	"context"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishChallengeFailed(ctx context.Context, event domain.ChallengeFailedEvent) error
	PublishNotificationSent(ctx context.Context, event domain.NotificationSentEvent) error
}
