package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/telemetry"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/repository"
)

const (
	defaultHealthCheckHour    = 4
	defaultReferenceUTCOffset = 3
	defaultSweepLockTTL       = time.Hour
)

// HealthCheckService runs the daily reconciliation sweep. The sweep is the
// safety net under the live timers: it detects missed days, fails challenges
// that crossed the threshold, and re-arms any timer a crash or restart lost.
type HealthCheckService struct {
	challenges port.ChallengeGateway
	users      port.UserDirectory
	scheduler  *SchedulerService
	sweepGuard port.SweepGuard
	events     port.EventPublisher
	logger     *zap.Logger
	metrics    *telemetry.SchedulerMetrics

	healthCheckHour    int
	referenceUTCOffset int
	sweepLockTTL       time.Duration
	now                func() time.Time

	mu    sync.Mutex
	timer *time.Timer
}

// NewHealthCheckService constructs a HealthCheckService.
func NewHealthCheckService(
	challenges port.ChallengeGateway,
	users port.UserDirectory,
	scheduler *SchedulerService,
	sweepGuard port.SweepGuard,
	events port.EventPublisher,
	logger *zap.Logger,
) *HealthCheckService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthCheckService{
		challenges:         challenges,
		users:              users,
		scheduler:          scheduler,
		sweepGuard:         sweepGuard,
		events:             events,
		logger:             logger,
		healthCheckHour:    defaultHealthCheckHour,
		referenceUTCOffset: defaultReferenceUTCOffset,
		sweepLockTTL:       defaultSweepLockTTL,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (h *HealthCheckService) WithClock(clock func() time.Time) {
	if clock != nil {
		h.now = clock
	}
}

// WithMetrics attaches scheduler collectors.
func (h *HealthCheckService) WithMetrics(metrics *telemetry.SchedulerMetrics) *HealthCheckService {
	h.metrics = metrics
	return h
}

// WithSchedule overrides the sweep anchor: the local hour and the UTC offset
// of the reference timezone the sweep runs in.
func (h *HealthCheckService) WithSchedule(hour, utcOffsetHours int) *HealthCheckService {
	if hour >= 0 && hour <= 23 {
		h.healthCheckHour = hour
	}
	if domain.ValidateUTCOffset(utcOffsetHours) == nil {
		h.referenceUTCOffset = utcOffsetHours
	}
	return h
}

// WithSweepLockTTL overrides the distributed sweep lock TTL.
func (h *HealthCheckService) WithSweepLockTTL(ttl time.Duration) *HealthCheckService {
	if ttl > 0 {
		h.sweepLockTTL = ttl
	}
	return h
}

// PerformDailyHealthCheck runs one sweep over every active challenge. The
// sweep lock serializes instances; losing the lock race means another
// instance is already sweeping and this call returns successfully without
// doing work. Per-user failures are logged and skipped so one broken record
// never stalls the rest.
func (h *HealthCheckService) PerformDailyHealthCheck(ctx context.Context) error {
	acquired, err := h.sweepGuard.AcquireSweepLock(ctx, h.sweepLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		h.logger.Info("health check sweep already running elsewhere, skipping")
		return nil
	}
	defer func() {
		if err := h.sweepGuard.ReleaseSweepLock(context.WithoutCancel(ctx)); err != nil {
			h.logger.Warn("release sweep lock failed", zap.Error(err))
		}
	}()

	started := h.now()
	challenges, err := h.challenges.ListActiveChallenges(ctx)
	if err != nil {
		return err
	}

	checked, failed := 0, 0
	for _, challenge := range challenges {
		justFailed, err := h.checkUser(ctx, challenge)
		if err != nil {
			h.logger.Warn("health check skipped user",
				zap.String("user_id", challenge.UserID),
				zap.Error(err),
			)
			continue
		}
		checked++
		if justFailed {
			failed++
		}
	}

	elapsed := h.now().Sub(started)
	if h.metrics != nil {
		h.metrics.SweepRuns.Inc()
		h.metrics.SweepDuration.Observe(elapsed.Seconds())
	}

	h.logger.Info("health check sweep complete",
		zap.Int("active_challenges", len(challenges)),
		zap.Int("checked", checked),
		zap.Int("newly_failed", failed),
		zap.Duration("elapsed", elapsed),
	)

	return nil
}

func (h *HealthCheckService) checkUser(ctx context.Context, challenge domain.Challenge) (bool, error) {
	user, err := h.users.GetUser(ctx, challenge.UserID)
	if err != nil {
		return false, err
	}

	justFailed, err := h.challenges.CheckAndIncrementMissedDays(ctx, challenge.UserID, user.UTCOffsetHours)
	if err != nil {
		if errors.Is(err, repository.ErrConcurrentUpdate) {
			// Another writer touched the record mid-check; the next sweep
			// picks this user up again.
			return false, nil
		}
		return false, err
	}

	if justFailed {
		h.scheduler.CancelDailyReminder(ctx, challenge.UserID)
		h.scheduler.CancelMissedDayNotification(ctx, challenge.UserID)
		if err := h.scheduler.ScheduleMissedDayNotification(ctx, challenge.UserID, user.UTCOffsetHours, domain.MissThreshold, true); err != nil {
			h.logger.Warn("schedule terminal notification failed",
				zap.String("user_id", challenge.UserID),
				zap.Error(err),
			)
		}
		h.publishFailed(ctx, challenge)
		return true, nil
	}

	// Re-read so the re-arm decisions see the state the check left behind.
	current, err := h.challenges.GetActiveChallenge(ctx, challenge.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if current.WantsReminder() && !h.scheduler.HasTimer(challenge.UserID, domain.TimerDailyReminder) {
		if err := h.scheduler.ScheduleDailyReminder(ctx, challenge.UserID, *current.ReminderTime, user.UTCOffsetHours); err != nil {
			h.logger.Warn("re-arm daily reminder failed",
				zap.String("user_id", challenge.UserID),
				zap.Error(err),
			)
		}
	}

	if current.DaysWithoutWorkout > 0 && !h.scheduler.HasTimer(challenge.UserID, domain.TimerMissedDay) {
		if err := h.scheduler.ScheduleMissedDayNotification(ctx, challenge.UserID, user.UTCOffsetHours, current.DaysWithoutWorkout, false); err != nil {
			h.logger.Warn("re-arm escalation failed",
				zap.String("user_id", challenge.UserID),
				zap.Error(err),
			)
		}
	}

	return false, nil
}

func (h *HealthCheckService) publishFailed(ctx context.Context, challenge domain.Challenge) {
	if h.events == nil {
		return
	}
	event := domain.ChallengeFailedEvent{
		EventID:     uuid.NewString(),
		UserID:      challenge.UserID,
		ChallengeID: challenge.ID,
		FailedAt:    h.now(),
		MissedDays:  domain.MissThreshold,
	}
	if err := h.events.PublishChallengeFailed(ctx, event); err != nil {
		h.logger.Warn("publish challenge failed event failed",
			zap.String("user_id", challenge.UserID),
			zap.Error(err),
		)
	}
}

// ScheduleDailyHealthCheck arms the self-rescheduling sweep timer at the next
// occurrence of the configured hour in the reference timezone.
func (h *HealthCheckService) ScheduleDailyHealthCheck() error {
	fireAt, err := domain.NextLocalOccurrence(
		domain.TimeOfDay{Hour: h.healthCheckHour},
		h.referenceUTCOffset,
		h.now(),
	)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}

	delay := fireAt.Sub(h.now())
	if delay < 0 {
		delay = 0
	}
	h.timer = time.AfterFunc(delay, h.runScheduled)

	h.logger.Info("health check scheduled",
		zap.Time("fire_at", fireAt),
		zap.Duration("delay", delay),
	)

	return nil
}

func (h *HealthCheckService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := h.PerformDailyHealthCheck(ctx); err != nil {
		h.logger.Error("health check sweep failed", zap.Error(err))
	}

	if err := h.ScheduleDailyHealthCheck(); err != nil {
		h.logger.Error("reschedule health check failed", zap.Error(err))
	}
}

// Stop cancels the pending sweep timer.
func (h *HealthCheckService) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}
