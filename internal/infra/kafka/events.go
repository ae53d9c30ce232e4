package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishChallengeFailed publishes bot.challenge.failed events.
func (p *EventPublisher) PublishChallengeFailed(ctx context.Context, event domain.ChallengeFailedEvent) error {
	payload := struct {
		UserID      string         `json:"user_id"`
		ChallengeID string         `json:"challenge_id"`
		FailedAt    time.Time      `json:"failed_at"`
		MissedDays  int            `json:"missed_days"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		UserID:      event.UserID,
		ChallengeID: event.ChallengeID,
		FailedAt:    event.FailedAt.UTC(),
		MissedDays:  event.MissedDays,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "challenge.failed", event.UserID, event.FailedAt, payload)
}

// PublishNotificationSent publishes bot.notification.sent events.
func (p *EventPublisher) PublishNotificationSent(ctx context.Context, event domain.NotificationSentEvent) error {
	payload := struct {
		UserID      string         `json:"user_id"`
		ChallengeID string         `json:"challenge_id,omitempty"`
		Kind        string         `json:"kind"`
		MissCount   int            `json:"miss_count"`
		Terminal    bool           `json:"terminal"`
		SentAt      time.Time      `json:"sent_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		UserID:      event.UserID,
		ChallengeID: event.ChallengeID,
		Kind:        string(event.Kind),
		MissCount:   event.MissCount,
		Terminal:    event.Terminal,
		SentAt:      event.SentAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "notification.sent", event.UserID, event.SentAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
