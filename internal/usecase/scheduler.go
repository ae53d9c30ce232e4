package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/telemetry"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/repository"
)

const (
	defaultMissedDayHour = 20
	defaultFireTimeout   = 30 * time.Second
)

// SchedulerService owns the live timer table and its durable mirror. It is
// the only writer of both: every arm writes through to the mirror and every
// cancel deletes it, so at most one timer of each kind is pending per user.
type SchedulerService struct {
	registry   *TimerRegistry
	store      port.ScheduleStore
	challenges port.ChallengeGateway
	users      port.UserDirectory
	dispatcher *NotificationDispatcher
	logger     *zap.Logger
	metrics    *telemetry.SchedulerMetrics

	missedDayHour int
	fireTimeout   time.Duration
	now           func() time.Time
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(
	registry *TimerRegistry,
	store port.ScheduleStore,
	challenges port.ChallengeGateway,
	users port.UserDirectory,
	dispatcher *NotificationDispatcher,
	logger *zap.Logger,
) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerService{
		registry:      registry,
		store:         store,
		challenges:    challenges,
		users:         users,
		dispatcher:    dispatcher,
		logger:        logger,
		missedDayHour: defaultMissedDayHour,
		fireTimeout:   defaultFireTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SchedulerService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches scheduler collectors.
func (s *SchedulerService) WithMetrics(metrics *telemetry.SchedulerMetrics) *SchedulerService {
	s.metrics = metrics
	return s
}

// WithMissedDayHour overrides the local hour escalations are delivered at.
func (s *SchedulerService) WithMissedDayHour(hour int) *SchedulerService {
	if hour >= 0 && hour <= 23 {
		s.missedDayHour = hour
	}
	return s
}

// WithFireTimeout overrides the per-fire execution deadline.
func (s *SchedulerService) WithFireTimeout(timeout time.Duration) *SchedulerService {
	if timeout > 0 {
		s.fireTimeout = timeout
	}
	return s
}

// ScheduleDailyReminder arms the user's daily reminder at the next local
// occurrence of timeOfDay, superseding any reminder already armed.
func (s *SchedulerService) ScheduleDailyReminder(ctx context.Context, userID string, timeOfDay domain.TimeOfDay, utcOffsetHours int) error {
	fireAt, err := domain.NextLocalOccurrence(timeOfDay, utcOffsetHours, s.now())
	if err != nil {
		return err
	}

	entry := domain.ScheduleEntry{
		UserID:         userID,
		Kind:           domain.TimerDailyReminder,
		FireAt:         fireAt,
		UTCOffsetHours: utcOffsetHours,
		TimeOfDay:      &timeOfDay,
	}

	if challenge, err := s.challenges.GetActiveChallenge(ctx, userID); err == nil {
		entry.ChallengeID = challenge.ID
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("resolve challenge for reminder mirror failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	s.armReminder(ctx, entry)
	return nil
}

// CancelDailyReminder stops the user's daily reminder and drops its mirror.
func (s *SchedulerService) CancelDailyReminder(ctx context.Context, userID string) {
	s.cancelTimer(ctx, userID, domain.TimerDailyReminder)
}

// ScheduleMissedDayNotification arms a one-shot escalation for the user.
// Terminal notifications fire immediately; escalations fire at the next
// occurrence of the configured local hour, skipping today when the challenge
// itself started today.
func (s *SchedulerService) ScheduleMissedDayNotification(ctx context.Context, userID string, utcOffsetHours, missCount int, terminal bool) error {
	if err := domain.ValidateUTCOffset(utcOffsetHours); err != nil {
		return err
	}

	now := s.now()

	entry := domain.ScheduleEntry{
		UserID:         userID,
		Kind:           domain.TimerMissedDay,
		FireAt:         now,
		UTCOffsetHours: utcOffsetHours,
		MissCount:      missCount,
		Terminal:       terminal,
	}

	anchor := now
	anchorKnown := false
	if challenge, err := s.challenges.GetActiveChallenge(ctx, userID); err == nil {
		entry.ChallengeID = challenge.ID
		anchor = challenge.StartedAt
		anchorKnown = true
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("resolve challenge for missed day mirror failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	if !terminal {
		// The same-day skip only applies when the start date is actually
		// known; an unresolved anchor must not defer delivery a day.
		var fireAt time.Time
		var err error
		if anchorKnown {
			fireAt, err = domain.NextAnchoredOccurrence(
				domain.TimeOfDay{Hour: s.missedDayHour},
				utcOffsetHours,
				anchor,
				now,
			)
		} else {
			fireAt, err = domain.NextLocalOccurrence(
				domain.TimeOfDay{Hour: s.missedDayHour},
				utcOffsetHours,
				now,
			)
		}
		if err != nil {
			return err
		}
		entry.FireAt = fireAt
	}

	s.armMissedDay(ctx, entry)
	return nil
}

// CancelMissedDayNotification stops the user's pending escalation and drops
// its mirror.
func (s *SchedulerService) CancelMissedDayNotification(ctx context.Context, userID string) {
	s.cancelTimer(ctx, userID, domain.TimerMissedDay)
}

// HasTimer reports whether a live timer of the given kind exists for the user.
func (s *SchedulerService) HasTimer(userID string, kind domain.TimerKind) bool {
	return s.registry.Has(userID, kind)
}

// RestoreNotifications is the bootstrap pass: it clears and rebuilds the
// durable mirror from the challenge records and re-arms every timer that
// should exist. A mirrored escalation whose fire time has already passed is
// re-armed as due now rather than silently dropped.
func (s *SchedulerService) RestoreNotifications(ctx context.Context) error {
	s.registry.CancelAll()

	now := s.now()
	overdue := make(map[string]bool)
	var overdueTerminal []domain.ScheduleEntry
	if mirrored, err := s.store.ListAll(ctx, domain.TimerMissedDay); err != nil {
		s.logger.Warn("list mirrored escalations failed", zap.Error(err))
	} else {
		for _, entry := range mirrored {
			if !entry.FireAt.Before(now) {
				continue
			}
			if entry.Terminal {
				overdueTerminal = append(overdueTerminal, entry)
			} else {
				overdue[entry.UserID] = true
			}
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear schedule mirror: %w", err)
	}

	challenges, err := s.challenges.ListActiveChallenges(ctx)
	if err != nil {
		return fmt.Errorf("list active challenges: %w", err)
	}

	restored := 0
	for _, challenge := range challenges {
		user, err := s.users.GetUser(ctx, challenge.UserID)
		if err != nil {
			s.logger.Warn("restore skipped user",
				zap.String("user_id", challenge.UserID),
				zap.Error(err),
			)
			continue
		}

		if challenge.WantsReminder() {
			if err := s.ScheduleDailyReminder(ctx, challenge.UserID, *challenge.ReminderTime, user.UTCOffsetHours); err != nil {
				s.logger.Warn("restore reminder failed",
					zap.String("user_id", challenge.UserID),
					zap.Error(err),
				)
			} else {
				restored++
			}
		}

		if challenge.DaysWithoutWorkout > 0 {
			if overdue[challenge.UserID] {
				entry := domain.ScheduleEntry{
					UserID:         challenge.UserID,
					Kind:           domain.TimerMissedDay,
					FireAt:         now,
					UTCOffsetHours: user.UTCOffsetHours,
					ChallengeID:    challenge.ID,
					MissCount:      challenge.DaysWithoutWorkout,
				}
				s.armMissedDay(ctx, entry)
				restored++
				continue
			}
			if err := s.ScheduleMissedDayNotification(ctx, challenge.UserID, user.UTCOffsetHours, challenge.DaysWithoutWorkout, false); err != nil {
				s.logger.Warn("restore escalation failed",
					zap.String("user_id", challenge.UserID),
					zap.Error(err),
				)
			} else {
				restored++
			}
		}
	}

	// A pending terminal notice can outlive its challenge: the record has
	// already been failed and left the active list, but the user still has
	// to be told. Re-arm those mirrors due now as well.
	for _, entry := range overdueTerminal {
		if s.registry.Has(entry.UserID, domain.TimerMissedDay) {
			continue
		}
		entry.FireAt = now
		s.armMissedDay(ctx, entry)
		restored++
	}

	s.logger.Info("notifications restored",
		zap.Int("active_challenges", len(challenges)),
		zap.Int("timers_armed", restored),
	)

	return nil
}

// UpdateReminderTime persists the new reminder time and re-arms the timer.
func (s *SchedulerService) UpdateReminderTime(ctx context.Context, userID string, timeOfDay domain.TimeOfDay) error {
	if err := s.challenges.UpdateReminderTime(ctx, userID, timeOfDay); err != nil {
		return fmt.Errorf("update reminder time: %w", err)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	return s.ScheduleDailyReminder(ctx, userID, timeOfDay, user.UTCOffsetHours)
}

// DisableReminders persists the opt-out and cancels the live timer.
func (s *SchedulerService) DisableReminders(ctx context.Context, userID string) error {
	if err := s.challenges.DisableReminders(ctx, userID); err != nil {
		return fmt.Errorf("disable reminders: %w", err)
	}

	s.CancelDailyReminder(ctx, userID)
	return nil
}

// Shutdown cancels every live timer. Durable mirrors are left in place so a
// restart can observe what was pending.
func (s *SchedulerService) Shutdown() {
	s.registry.CancelAll()
	s.updateGauges()
	s.logger.Info("scheduler timers cancelled")
}

func (s *SchedulerService) armReminder(ctx context.Context, entry domain.ScheduleEntry) {
	s.registry.Arm(entry.UserID, entry.Kind, entry.FireAt, func() {
		s.fireDailyReminder(entry)
	})
	s.saveMirror(ctx, entry)
	s.updateGauges()
}

func (s *SchedulerService) armMissedDay(ctx context.Context, entry domain.ScheduleEntry) {
	s.registry.Arm(entry.UserID, entry.Kind, entry.FireAt, func() {
		s.fireMissedDay(entry)
	})
	s.saveMirror(ctx, entry)
	s.updateGauges()
}

func (s *SchedulerService) fireDailyReminder(entry domain.ScheduleEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	next, err := s.dispatcher.DeliverDailyReminder(ctx, entry)
	if err != nil {
		s.logger.Warn("daily reminder delivery failed",
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}

	if next != nil {
		s.armReminder(ctx, *next)
		return
	}

	s.removeMirror(ctx, entry.UserID, domain.TimerDailyReminder)
	s.updateGauges()

	if errors.Is(err, port.ErrChannelBlocked) {
		s.CancelMissedDayNotification(ctx, entry.UserID)
	}
}

func (s *SchedulerService) fireMissedDay(entry domain.ScheduleEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	err := s.dispatcher.DeliverMissedDay(ctx, entry)
	if err != nil {
		s.logger.Warn("missed day delivery failed",
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}

	// One-shot: a new escalation is created only when a future day is again
	// found missing.
	s.removeMirror(ctx, entry.UserID, domain.TimerMissedDay)
	s.updateGauges()

	if errors.Is(err, port.ErrChannelBlocked) {
		s.CancelDailyReminder(ctx, entry.UserID)
	}
}

func (s *SchedulerService) cancelTimer(ctx context.Context, userID string, kind domain.TimerKind) {
	s.registry.Cancel(userID, kind)
	s.removeMirror(ctx, userID, kind)
	s.updateGauges()
}

func (s *SchedulerService) saveMirror(ctx context.Context, entry domain.ScheduleEntry) {
	if err := s.store.Save(ctx, entry, entry.MirrorTTL(s.now())); err != nil {
		s.logger.Warn("write schedule mirror failed",
			zap.String("user_id", entry.UserID),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err),
		)
	}
}

func (s *SchedulerService) removeMirror(ctx context.Context, userID string, kind domain.TimerKind) {
	if err := s.store.Remove(ctx, userID, kind); err != nil {
		s.logger.Warn("remove schedule mirror failed",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (s *SchedulerService) updateGauges() {
	if s.metrics == nil {
		return
	}
	for _, kind := range []domain.TimerKind{domain.TimerDailyReminder, domain.TimerMissedDay} {
		s.metrics.TimersArmed.WithLabelValues(string(kind)).Set(float64(s.registry.Count(kind)))
	}
}
