package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
)

type timerKey struct {
	userID string
	kind   domain.TimerKind
}

type armedTimer struct {
	timer  *time.Timer
	fireAt time.Time
}

// TimerRegistry is the in-memory table of live per-user timers, one slot per
// (user, kind). Arming a slot always supersedes the previous timer of that
// kind, which is the core invariant preventing duplicate notifications.
// Callbacks run on their own goroutine; a panicking callback is logged and
// the slot is treated as fired.
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[timerKey]*armedTimer
	logger *zap.Logger
	now    func() time.Time
}

// NewTimerRegistry constructs an empty registry.
func NewTimerRegistry(logger *zap.Logger) *TimerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerRegistry{
		timers: make(map[timerKey]*armedTimer),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (r *TimerRegistry) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Arm schedules callback to run at fireAt, cancelling any existing timer of
// the same kind for the same user. A fire time in the past fires immediately.
func (r *TimerRegistry) Arm(userID string, kind domain.TimerKind, fireAt time.Time, callback func()) {
	key := timerKey{userID: userID, kind: kind}

	delay := fireAt.Sub(r.now())
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.timers[key]; ok {
		existing.timer.Stop()
	}

	armed := &armedTimer{fireAt: fireAt}
	armed.timer = time.AfterFunc(delay, func() {
		r.release(key, armed)

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("timer callback panicked",
					zap.String("user_id", userID),
					zap.String("kind", string(kind)),
					zap.Any("panic", rec),
				)
			}
		}()

		callback()
	})
	r.timers[key] = armed
}

// Cancel stops the timer of the given kind for the user. Cancelling an
// absent timer is a no-op; it returns whether a timer was live.
func (r *TimerRegistry) Cancel(userID string, kind domain.TimerKind) bool {
	key := timerKey{userID: userID, kind: kind}

	r.mu.Lock()
	defer r.mu.Unlock()

	armed, ok := r.timers[key]
	if !ok {
		return false
	}

	armed.timer.Stop()
	delete(r.timers, key)
	return true
}

// Has reports whether a timer of the given kind is currently armed for the user.
func (r *TimerRegistry) Has(userID string, kind domain.TimerKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.timers[timerKey{userID: userID, kind: kind}]
	return ok
}

// FireTime returns the instant the armed timer will fire at.
func (r *TimerRegistry) FireTime(userID string, kind domain.TimerKind) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	armed, ok := r.timers[timerKey{userID: userID, kind: kind}]
	if !ok {
		return time.Time{}, false
	}
	return armed.fireAt, true
}

// CancelAll stops every live timer. Used on shutdown.
func (r *TimerRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, armed := range r.timers {
		armed.timer.Stop()
		delete(r.timers, key)
	}
}

// Count returns the number of live timers of the given kind.
func (r *TimerRegistry) Count(kind domain.TimerKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key := range r.timers {
		if key.kind == kind {
			count++
		}
	}
	return count
}

// release drops the slot when the firing timer is still the current owner.
// A timer superseded while its callback was already queued must not remove
// its successor.
func (r *TimerRegistry) release(key timerKey, armed *armedTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.timers[key]; ok && current == armed {
		delete(r.timers, key)
	}
}
