package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/telemetry"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/repository"
)

const (
	defaultNotificationLockTTL = 5 * time.Minute
	defaultDedupWindow         = time.Hour
)

// Escalation images shipped with the bot. Overridable via WithImages.
var defaultEscalationImages = map[int]string{
	1: "https://static.motivation-bot.app/escalation-1.png",
	2: "https://static.motivation-bot.app/escalation-2.png",
	3: "https://static.motivation-bot.app/challenge-failed.png",
}

// NotificationDispatcher executes notification logic at timer fire time: it
// re-validates state, applies the send lock and dedup cool-down, delivers the
// message, and decides whether a successor timer should exist.
type NotificationDispatcher struct {
	challenges  port.ChallengeGateway
	users       port.UserDirectory
	guard       port.NotificationGuard
	messenger   port.Messenger
	events      port.EventPublisher
	logger      *zap.Logger
	metrics     *telemetry.SchedulerMetrics
	images      map[int]string
	lockTTL     time.Duration
	dedupWindow time.Duration
	now         func() time.Time
}

// NewNotificationDispatcher constructs a dispatcher with default guard windows.
func NewNotificationDispatcher(
	challenges port.ChallengeGateway,
	users port.UserDirectory,
	guard port.NotificationGuard,
	messenger port.Messenger,
	events port.EventPublisher,
	logger *zap.Logger,
) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationDispatcher{
		challenges:  challenges,
		users:       users,
		guard:       guard,
		messenger:   messenger,
		events:      events,
		logger:      logger,
		images:      defaultEscalationImages,
		lockTTL:     defaultNotificationLockTTL,
		dedupWindow: defaultDedupWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (d *NotificationDispatcher) WithClock(clock func() time.Time) {
	if clock != nil {
		d.now = clock
	}
}

// WithMetrics attaches scheduler collectors.
func (d *NotificationDispatcher) WithMetrics(metrics *telemetry.SchedulerMetrics) *NotificationDispatcher {
	d.metrics = metrics
	return d
}

// WithGuardWindows overrides the lock TTL and dedup cool-down.
func (d *NotificationDispatcher) WithGuardWindows(lockTTL, dedupWindow time.Duration) *NotificationDispatcher {
	if lockTTL > 0 {
		d.lockTTL = lockTTL
	}
	if dedupWindow > 0 {
		d.dedupWindow = dedupWindow
	}
	return d
}

// WithImages overrides the escalation image set keyed by miss count.
func (d *NotificationDispatcher) WithImages(images map[int]string) *NotificationDispatcher {
	if len(images) > 0 {
		d.images = images
	}
	return d
}

// DeliverDailyReminder runs the daily reminder path for one fired timer and
// returns the successor entry, or nil when no further reminders should be
// scheduled for the user. A non-nil error alongside a non-nil successor is a
// transient failure: the caller re-arms and the next occurrence retries.
func (d *NotificationDispatcher) DeliverDailyReminder(ctx context.Context, entry domain.ScheduleEntry) (*domain.ScheduleEntry, error) {
	now := d.now()

	if entry.TimeOfDay == nil {
		return nil, errors.New("reminder entry is missing time of day")
	}

	nextFire, err := domain.NextLocalOccurrence(*entry.TimeOfDay, entry.UTCOffsetHours, now)
	if err != nil {
		return nil, err
	}
	next := entry
	next.FireAt = nextFire

	challenge, err := d.challenges.GetActiveChallenge(ctx, entry.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return &next, fmt.Errorf("reload challenge: %w", err)
	}

	if !challenge.WantsReminder() {
		return nil, nil
	}

	// A pending miss means the escalation path owns the conversation today;
	// the cheerful reminder stays silent but keeps its schedule.
	if challenge.DaysWithoutWorkout > 0 {
		return &next, nil
	}

	// Race guard: the miss detector may not have run yet for yesterday.
	yesterday := domain.LocalDate(now, entry.UTCOffsetHours).AddDate(0, 0, -1)
	startDay := domain.LocalDate(challenge.StartedAt, entry.UTCOffsetHours)
	if !yesterday.Before(startDay) {
		hasProof, err := d.challenges.HasProofForDate(ctx, entry.UserID, yesterday)
		if err != nil {
			return &next, fmt.Errorf("check yesterday proof: %w", err)
		}
		if !hasProof {
			return &next, nil
		}
	}

	user, err := d.users.GetUser(ctx, entry.UserID)
	if err != nil {
		return &next, fmt.Errorf("resolve user: %w", err)
	}

	payload := domain.DailyReminderPayload(*user, *challenge)
	if err := d.messenger.SendText(ctx, payload.ChatID, payload.Text); err != nil {
		if errors.Is(err, port.ErrChannelBlocked) {
			d.logger.Warn("reminder channel blocked, stopping reminders",
				zap.String("user_id", entry.UserID),
			)
			d.countFailure("channel_blocked")
			return nil, err
		}
		d.countFailure(failureReason(err))
		return &next, fmt.Errorf("send daily reminder: %w", err)
	}

	d.countSent(domain.TimerDailyReminder)
	d.publishSent(ctx, entry, challenge.ID, now)

	return &next, nil
}

// DeliverMissedDay runs the missed-day / terminal path for one fired timer.
// The send is wrapped in the per-user lock and the dedup cool-down so two
// near-simultaneous triggers produce exactly one message. The entry is
// one-shot: it is never re-armed here.
func (d *NotificationDispatcher) DeliverMissedDay(ctx context.Context, entry domain.ScheduleEntry) error {
	now := d.now()

	acquired, err := d.guard.AcquireLock(ctx, entry.UserID, d.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire notification lock: %w", err)
	}
	if !acquired {
		d.logger.Info("notification lock held elsewhere, skipping send",
			zap.String("user_id", entry.UserID),
		)
		return nil
	}
	defer func() {
		if err := d.guard.ReleaseLock(context.WithoutCancel(ctx), entry.UserID); err != nil {
			d.logger.Warn("release notification lock failed",
				zap.String("user_id", entry.UserID),
				zap.Error(err),
			)
		}
	}()

	if last, ok, err := d.guard.LastNotifiedAt(ctx, entry.UserID); err != nil {
		return fmt.Errorf("check dedup marker: %w", err)
	} else if ok && now.Sub(last) < d.dedupWindow {
		d.logger.Info("notification inside dedup cool-down, skipping send",
			zap.String("user_id", entry.UserID),
			zap.Time("last_notified_at", last),
		)
		return nil
	}

	// Re-validate against the source of truth before sending.
	challenge, err := d.challenges.GetActiveChallenge(ctx, entry.UserID)
	switch {
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("reload challenge: %w", err)
	case entry.Terminal:
		// The challenge is expected to already be failed; an active record
		// with no pending misses means the user recovered concurrently.
		if err == nil && challenge.DaysWithoutWorkout == 0 {
			return nil
		}
	case err != nil:
		return nil
	case challenge.DaysWithoutWorkout == 0:
		return nil
	}

	user, err := d.users.GetUser(ctx, entry.UserID)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	payload := domain.MissedDayPayload(*user, entry.MissCount, entry.Terminal)
	payload.ImageURL = d.imageFor(entry)

	if err := d.messenger.SendPhoto(ctx, payload); err != nil {
		if errors.Is(err, port.ErrChannelBlocked) {
			d.countFailure("channel_blocked")
			return err
		}

		d.logger.Warn("photo delivery failed, falling back to text",
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
		if err := d.messenger.SendText(ctx, payload.ChatID, payload.Caption); err != nil {
			if errors.Is(err, port.ErrChannelBlocked) {
				d.countFailure("channel_blocked")
				return err
			}
			d.countFailure(failureReason(err))
			return fmt.Errorf("send missed day notification: %w", err)
		}
	}

	if err := d.guard.MarkNotified(ctx, entry.UserID, now, d.dedupWindow); err != nil {
		d.logger.Warn("record dedup marker failed",
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}

	d.countSent(domain.TimerMissedDay)
	d.publishSent(ctx, entry, entry.ChallengeID, now)

	return nil
}

func (d *NotificationDispatcher) imageFor(entry domain.ScheduleEntry) string {
	if entry.Terminal {
		return d.images[domain.MissThreshold]
	}

	missCount := entry.MissCount
	if missCount < 1 {
		missCount = 1
	}
	if missCount >= domain.MissThreshold {
		missCount = domain.MissThreshold - 1
	}
	return d.images[missCount]
}

func (d *NotificationDispatcher) publishSent(ctx context.Context, entry domain.ScheduleEntry, challengeID string, at time.Time) {
	if d.events == nil {
		return
	}

	event := domain.NotificationSentEvent{
		EventID:     uuid.NewString(),
		UserID:      entry.UserID,
		ChallengeID: challengeID,
		Kind:        entry.Kind,
		MissCount:   entry.MissCount,
		Terminal:    entry.Terminal,
		SentAt:      at,
	}
	if err := d.events.PublishNotificationSent(ctx, event); err != nil {
		d.logger.Warn("publish notification sent failed",
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}
}

func (d *NotificationDispatcher) countSent(kind domain.TimerKind) {
	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(string(kind)).Inc()
	}
}

func (d *NotificationDispatcher) countFailure(reason string) {
	if d.metrics != nil {
		d.metrics.NotificationFailures.WithLabelValues(reason).Inc()
	}
}

func failureReason(err error) string {
	if errors.Is(err, port.ErrRateLimited) {
		return "rate_limited"
	}
	return "unknown"
}
