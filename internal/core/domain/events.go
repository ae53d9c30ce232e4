package domain

import "time"

// ChallengeFailedEvent represents the payload for bot.challenge.failed messages.
type ChallengeFailedEvent struct {
	EventID     string
	UserID      string
	ChallengeID string
	FailedAt    time.Time
	MissedDays  int
	Metadata    map[string]any
}

// NotificationSentEvent represents the payload for bot.notification.sent messages.
type NotificationSentEvent struct {
	EventID     string
	UserID      string
	ChallengeID string
	Kind        TimerKind
	MissCount   int
	Terminal    bool
	SentAt      time.Time
	Metadata    map[string]any
}
