package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
)

type schedulerFixture struct {
	scheduler *SchedulerService
	registry  *TimerRegistry
	store     *stubScheduleStore
	gateway   *stubChallengeGateway
	users     *stubUserDirectory
	guard     *stubNotificationGuard
	messenger *stubMessenger
	events    *stubEventPublisher
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	gateway := newStubChallengeGateway()
	users := newStubUserDirectory()
	guard := newStubNotificationGuard()
	store := newStubScheduleStore()
	messenger := &stubMessenger{}
	events := &stubEventPublisher{}
	logger := zaptest.NewLogger(t)

	dispatcher := NewNotificationDispatcher(gateway, users, guard, messenger, events, logger)
	dispatcher.WithClock(func() time.Time { return dispatcherNow })

	registry := NewTimerRegistry(logger)
	registry.WithClock(func() time.Time { return dispatcherNow })

	scheduler := NewSchedulerService(registry, store, gateway, users, dispatcher, logger)
	scheduler.WithClock(func() time.Time { return dispatcherNow })

	t.Cleanup(registry.CancelAll)

	return &schedulerFixture{
		scheduler: scheduler,
		registry:  registry,
		store:     store,
		gateway:   gateway,
		users:     users,
		guard:     guard,
		messenger: messenger,
		events:    events,
	}
}

func TestScheduleDailyReminderArmsTimerAndMirror(t *testing.T) {
	f := newSchedulerFixture(t)
	f.gateway.put(activeChallenge("user-1"))

	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 9}, 3); err != nil {
		t.Fatalf("ScheduleDailyReminder: %v", err)
	}

	want := time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)
	fireAt, ok := f.registry.FireTime("user-1", domain.TimerDailyReminder)
	if !ok {
		t.Fatal("timer not armed")
	}
	if !fireAt.Equal(want) {
		t.Fatalf("fire time = %v, want %v", fireAt, want)
	}

	entry, ok := f.store.get("user-1", domain.TimerDailyReminder)
	if !ok {
		t.Fatal("mirror entry missing")
	}
	if !entry.FireAt.Equal(want) {
		t.Fatalf("mirror fire time = %v, want %v", entry.FireAt, want)
	}
	if entry.ChallengeID != "ch-user-1" {
		t.Fatalf("mirror challenge id = %q", entry.ChallengeID)
	}

	wantTTL := 30*time.Minute + 24*time.Hour
	if got := f.store.ttls[storeKey{userID: "user-1", kind: domain.TimerDailyReminder}]; got != wantTTL {
		t.Fatalf("mirror ttl = %v, want %v", got, wantTTL)
	}
}

func TestScheduleDailyReminderSupersedesPrevious(t *testing.T) {
	f := newSchedulerFixture(t)

	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 9}, 3); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 21}, 3); err != nil {
		t.Fatalf("second schedule: %v", err)
	}

	if got := f.registry.Count(domain.TimerDailyReminder); got != 1 {
		t.Fatalf("live reminder timers = %d, want 1", got)
	}

	want := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	fireAt, _ := f.registry.FireTime("user-1", domain.TimerDailyReminder)
	if !fireAt.Equal(want) {
		t.Fatalf("fire time = %v, want %v", fireAt, want)
	}

	entry, _ := f.store.get("user-1", domain.TimerDailyReminder)
	if entry.TimeOfDay == nil || entry.TimeOfDay.Hour != 21 {
		t.Fatalf("mirror time of day = %+v, want 21:00", entry.TimeOfDay)
	}
}

func TestScheduleDailyReminderRejectsBadOffset(t *testing.T) {
	f := newSchedulerFixture(t)

	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 9}, 15); err == nil {
		t.Fatal("expected offset validation error")
	}
	if f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("timer armed despite invalid offset")
	}
}

func TestCancelDailyReminderRemovesTimerAndMirror(t *testing.T) {
	f := newSchedulerFixture(t)

	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 9}, 3); err != nil {
		t.Fatalf("ScheduleDailyReminder: %v", err)
	}

	f.scheduler.CancelDailyReminder(context.Background(), "user-1")

	if f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("timer still armed")
	}
	if _, ok := f.store.get("user-1", domain.TimerDailyReminder); ok {
		t.Fatal("mirror entry still present")
	}
}

func TestScheduleMissedDayFiresAtEveningHour(t *testing.T) {
	f := newSchedulerFixture(t)
	f.gateway.put(activeChallenge("user-1"))

	if err := f.scheduler.ScheduleMissedDayNotification(context.Background(), "user-1", 3, 1, false); err != nil {
		t.Fatalf("ScheduleMissedDayNotification: %v", err)
	}

	// 20:00 local at UTC+3 is 17:00 UTC.
	want := time.Date(2026, time.March, 10, 17, 0, 0, 0, time.UTC)
	fireAt, ok := f.registry.FireTime("user-1", domain.TimerMissedDay)
	if !ok {
		t.Fatal("timer not armed")
	}
	if !fireAt.Equal(want) {
		t.Fatalf("fire time = %v, want %v", fireAt, want)
	}
}

func TestScheduleMissedDaySkipsTodayWhenChallengeStartedToday(t *testing.T) {
	f := newSchedulerFixture(t)

	challenge := activeChallenge("user-1")
	challenge.StartedAt = dispatcherNow.Add(-time.Hour)
	f.gateway.put(challenge)

	if err := f.scheduler.ScheduleMissedDayNotification(context.Background(), "user-1", 3, 1, false); err != nil {
		t.Fatalf("ScheduleMissedDayNotification: %v", err)
	}

	want := time.Date(2026, time.March, 11, 17, 0, 0, 0, time.UTC)
	fireAt, _ := f.registry.FireTime("user-1", domain.TimerMissedDay)
	if !fireAt.Equal(want) {
		t.Fatalf("fire time = %v, want tomorrow %v", fireAt, want)
	}
}

func TestScheduleMissedDayTerminalDeliversImmediately(t *testing.T) {
	f := newSchedulerFixture(t)

	challenge := activeChallenge("user-1")
	challenge.Status = domain.ChallengeFailed
	f.gateway.put(challenge)
	f.users.put(domain.User{ID: "user-1", ChatID: "C1", UTCOffsetHours: 3})

	if err := f.scheduler.ScheduleMissedDayNotification(context.Background(), "user-1", 3, domain.MissThreshold, true); err != nil {
		t.Fatalf("ScheduleMissedDayNotification: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.messenger.photoCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.messenger.photoCount() != 1 {
		t.Fatalf("terminal notice not delivered, photos = %d", f.messenger.photoCount())
	}
}

func TestUpdateReminderTimePersistsAndRearms(t *testing.T) {
	f := newSchedulerFixture(t)
	f.gateway.put(activeChallenge("user-1"))
	f.users.put(domain.User{ID: "user-1", ChatID: "C1", UTCOffsetHours: 3})

	if err := f.scheduler.UpdateReminderTime(context.Background(), "user-1", domain.TimeOfDay{Hour: 7, Minute: 30}); err != nil {
		t.Fatalf("UpdateReminderTime: %v", err)
	}

	if len(f.gateway.updateCalls) != 1 {
		t.Fatalf("gateway update calls = %d, want 1", len(f.gateway.updateCalls))
	}

	// 07:30 local at UTC+3 is 04:30 UTC, already past at 05:30, so tomorrow.
	want := time.Date(2026, time.March, 11, 4, 30, 0, 0, time.UTC)
	fireAt, ok := f.registry.FireTime("user-1", domain.TimerDailyReminder)
	if !ok {
		t.Fatal("timer not armed")
	}
	if !fireAt.Equal(want) {
		t.Fatalf("fire time = %v, want %v", fireAt, want)
	}
}

func TestUpdateReminderTimeFailsWithoutActiveChallenge(t *testing.T) {
	f := newSchedulerFixture(t)

	if err := f.scheduler.UpdateReminderTime(context.Background(), "user-1", domain.TimeOfDay{Hour: 7}); err == nil {
		t.Fatal("expected error for missing challenge")
	}
	if f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("timer armed despite persistence failure")
	}
}

func TestDisableRemindersPersistsAndCancels(t *testing.T) {
	f := newSchedulerFixture(t)
	f.gateway.put(activeChallenge("user-1"))

	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 9}, 3); err != nil {
		t.Fatalf("ScheduleDailyReminder: %v", err)
	}

	if err := f.scheduler.DisableReminders(context.Background(), "user-1"); err != nil {
		t.Fatalf("DisableReminders: %v", err)
	}

	if len(f.gateway.disableCalls) != 1 {
		t.Fatalf("gateway disable calls = %d, want 1", len(f.gateway.disableCalls))
	}
	if f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("timer still armed after disable")
	}
}

func TestRestoreNotificationsRebuildsFromChallenges(t *testing.T) {
	f := newSchedulerFixture(t)

	f.gateway.put(activeChallenge("user-1"))
	f.users.put(domain.User{ID: "user-1", ChatID: "C1", UTCOffsetHours: 3})

	missed := activeChallenge("user-2")
	missed.ID = "ch-user-2"
	missed.UserID = "user-2"
	missed.DaysWithoutWorkout = 1
	f.gateway.put(missed)
	f.users.put(domain.User{ID: "user-2", ChatID: "C2", UTCOffsetHours: 3})

	// A stale mirror entry for a user with no active challenge must vanish.
	_ = f.store.Save(context.Background(), domain.ScheduleEntry{
		UserID: "ghost",
		Kind:   domain.TimerDailyReminder,
		FireAt: dispatcherNow.Add(time.Hour),
	}, time.Hour)

	if err := f.scheduler.RestoreNotifications(context.Background()); err != nil {
		t.Fatalf("RestoreNotifications: %v", err)
	}

	if !f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("reminder timer not restored")
	}
	if !f.registry.Has("user-2", domain.TimerDailyReminder) {
		t.Fatal("second reminder timer not restored")
	}
	if !f.registry.Has("user-2", domain.TimerMissedDay) {
		t.Fatal("escalation timer not restored")
	}

	if _, ok := f.store.get("ghost", domain.TimerDailyReminder); ok {
		t.Fatal("stale mirror entry survived restore")
	}
}

func TestRestoreNotificationsDeliversOverdueEscalation(t *testing.T) {
	f := newSchedulerFixture(t)

	missed := activeChallenge("user-1")
	missed.DaysWithoutWorkout = 2
	f.gateway.put(missed)
	f.users.put(domain.User{ID: "user-1", ChatID: "C1", UTCOffsetHours: 3})

	_ = f.store.Save(context.Background(), domain.ScheduleEntry{
		UserID:         "user-1",
		Kind:           domain.TimerMissedDay,
		FireAt:         dispatcherNow.Add(-2 * time.Hour),
		UTCOffsetHours: 3,
		MissCount:      2,
	}, time.Hour)

	if err := f.scheduler.RestoreNotifications(context.Background()); err != nil {
		t.Fatalf("RestoreNotifications: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.messenger.photoCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.messenger.photoCount() != 1 {
		t.Fatalf("overdue escalation not delivered, photos = %d", f.messenger.photoCount())
	}
}

func TestRestoreNotificationsDeliversOverdueTerminalNotice(t *testing.T) {
	f := newSchedulerFixture(t)

	// The challenge already failed, so it is absent from the active list,
	// but the mirrored terminal notice was never delivered.
	failed := activeChallenge("user-1")
	failed.Status = domain.ChallengeFailed
	f.gateway.put(failed)
	f.users.put(domain.User{ID: "user-1", ChatID: "C1", UTCOffsetHours: 3})

	_ = f.store.Save(context.Background(), domain.ScheduleEntry{
		UserID:         "user-1",
		Kind:           domain.TimerMissedDay,
		FireAt:         dispatcherNow.Add(-2 * time.Hour),
		UTCOffsetHours: 3,
		ChallengeID:    "ch-user-1",
		MissCount:      domain.MissThreshold,
		Terminal:       true,
	}, time.Hour)

	if err := f.scheduler.RestoreNotifications(context.Background()); err != nil {
		t.Fatalf("RestoreNotifications: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.messenger.photoCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.messenger.photoCount() != 1 {
		t.Fatalf("overdue terminal notice not delivered, photos = %d", f.messenger.photoCount())
	}
}

func TestScheduleMissedDayKeepsTodayWhenChallengeLookupFails(t *testing.T) {
	f := newSchedulerFixture(t)
	f.gateway.getErr = errors.New("challenge lookup unavailable")

	if err := f.scheduler.ScheduleMissedDayNotification(context.Background(), "user-1", 3, 1, false); err != nil {
		t.Fatalf("ScheduleMissedDayNotification: %v", err)
	}

	// With the start date unknown the escalation must still go out at the
	// next 20:00 local, not a day later.
	want := time.Date(2026, time.March, 10, 17, 0, 0, 0, time.UTC)
	fireAt, ok := f.registry.FireTime("user-1", domain.TimerMissedDay)
	if !ok {
		t.Fatal("timer not armed")
	}
	if !fireAt.Equal(want) {
		t.Fatalf("fire time = %v, want %v", fireAt, want)
	}
}

func TestRestoreNotificationsSkipsBrokenUsers(t *testing.T) {
	f := newSchedulerFixture(t)

	f.gateway.put(activeChallenge("user-1"))
	// No directory record for user-1.

	other := activeChallenge("user-2")
	other.ID = "ch-user-2"
	other.UserID = "user-2"
	f.gateway.put(other)
	f.users.put(domain.User{ID: "user-2", ChatID: "C2", UTCOffsetHours: 3})

	if err := f.scheduler.RestoreNotifications(context.Background()); err != nil {
		t.Fatalf("RestoreNotifications: %v", err)
	}

	if f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("timer armed for user with no directory record")
	}
	if !f.registry.Has("user-2", domain.TimerDailyReminder) {
		t.Fatal("healthy user skipped because of a broken one")
	}
}

func TestShutdownCancelsTimersButKeepsMirrors(t *testing.T) {
	f := newSchedulerFixture(t)

	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 9}, 3); err != nil {
		t.Fatalf("ScheduleDailyReminder: %v", err)
	}

	f.scheduler.Shutdown()

	if f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("timer still armed after shutdown")
	}
	if _, ok := f.store.get("user-1", domain.TimerDailyReminder); !ok {
		t.Fatal("mirror entry dropped on shutdown")
	}
}

func TestScheduleMissedDayChannelBlockedCancelsBothTimers(t *testing.T) {
	f := newSchedulerFixture(t)

	challenge := activeChallenge("user-1")
	challenge.DaysWithoutWorkout = 1
	f.gateway.put(challenge)
	f.users.put(domain.User{ID: "user-1", ChatID: "C1", UTCOffsetHours: 3})
	f.messenger.photoErr = port.ErrChannelBlocked
	f.messenger.textErr = port.ErrChannelBlocked

	if err := f.scheduler.ScheduleDailyReminder(context.Background(), "user-1", domain.TimeOfDay{Hour: 9}, 3); err != nil {
		t.Fatalf("ScheduleDailyReminder: %v", err)
	}

	// Arm the escalation in the past so it fires right away.
	entry := domain.ScheduleEntry{
		UserID:         "user-1",
		Kind:           domain.TimerMissedDay,
		FireAt:         dispatcherNow.Add(-time.Minute),
		UTCOffsetHours: 3,
		MissCount:      1,
	}
	f.scheduler.armMissedDay(context.Background(), entry)

	deadline := time.Now().Add(2 * time.Second)
	for f.registry.Has("user-1", domain.TimerDailyReminder) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if f.registry.Has("user-1", domain.TimerDailyReminder) {
		t.Fatal("daily reminder survived a blocked channel")
	}
	if f.registry.Has("user-1", domain.TimerMissedDay) {
		t.Fatal("escalation timer survived a blocked channel")
	}
}
