package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishChallengeFailed logs bot.challenge.failed events.
func (p *StubPublisher) PublishChallengeFailed(_ context.Context, event domain.ChallengeFailedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"challenge_id": event.ChallengeID,
		"failed_at":    event.FailedAt,
		"missed_days":  event.MissedDays,
		"metadata":     event.Metadata,
	}
	p.logEvent("challenge.failed", event.UserID, event.FailedAt, payload)
	return nil
}

// PublishNotificationSent logs bot.notification.sent events.
func (p *StubPublisher) PublishNotificationSent(_ context.Context, event domain.NotificationSentEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"challenge_id": event.ChallengeID,
		"kind":         event.Kind,
		"miss_count":   event.MissCount,
		"terminal":     event.Terminal,
		"sent_at":      event.SentAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("notification.sent", event.UserID, event.SentAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
