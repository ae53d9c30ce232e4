package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/repository"
)

type stubChallengeGateway struct {
	mu         sync.Mutex
	challenges map[string]*domain.Challenge
	proofs     map[string]map[string]bool

	checkFailed map[string]bool
	checkErr    error
	listErr     error
	getErr      error

	updateCalls  []string
	disableCalls []string
	failCalls    []string
	checkCalls   []string
}

func newStubChallengeGateway() *stubChallengeGateway {
	return &stubChallengeGateway{
		challenges:  make(map[string]*domain.Challenge),
		proofs:      make(map[string]map[string]bool),
		checkFailed: make(map[string]bool),
	}
}

func (s *stubChallengeGateway) put(challenge domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := challenge
	s.challenges[challenge.UserID] = &copied
}

func (s *stubChallengeGateway) addProof(userID string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proofs[userID] == nil {
		s.proofs[userID] = make(map[string]bool)
	}
	s.proofs[userID][day.Format("2006-01-02")] = true
}

func (s *stubChallengeGateway) GetActiveChallenge(_ context.Context, userID string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	challenge, ok := s.challenges[userID]
	if !ok || !challenge.IsActive() {
		return nil, repository.ErrNotFound
	}
	copied := *challenge
	return &copied, nil
}

func (s *stubChallengeGateway) ListActiveChallenges(_ context.Context) ([]domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	result := make([]domain.Challenge, 0, len(s.challenges))
	for _, challenge := range s.challenges {
		if challenge.IsActive() {
			result = append(result, *challenge)
		}
	}
	return result, nil
}

func (s *stubChallengeGateway) UpdateReminderTime(_ context.Context, userID string, timeOfDay domain.TimeOfDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls = append(s.updateCalls, userID)
	challenge, ok := s.challenges[userID]
	if !ok || !challenge.IsActive() {
		return repository.ErrNotFound
	}
	challenge.ReminderTime = &timeOfDay
	challenge.RemindersEnabled = true
	return nil
}

func (s *stubChallengeGateway) DisableReminders(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableCalls = append(s.disableCalls, userID)
	challenge, ok := s.challenges[userID]
	if !ok || !challenge.IsActive() {
		return repository.ErrNotFound
	}
	challenge.RemindersEnabled = false
	return nil
}

func (s *stubChallengeGateway) CheckAndIncrementMissedDays(_ context.Context, userID string, _ int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkCalls = append(s.checkCalls, userID)
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.checkFailed[userID], nil
}

func (s *stubChallengeGateway) FailChallenge(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCalls = append(s.failCalls, userID)
	challenge, ok := s.challenges[userID]
	if !ok {
		return repository.ErrNotFound
	}
	challenge.Status = domain.ChallengeFailed
	return nil
}

func (s *stubChallengeGateway) HasProofForDate(_ context.Context, userID string, localDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proofs[userID][localDate.Format("2006-01-02")], nil
}

type stubUserDirectory struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func newStubUserDirectory() *stubUserDirectory {
	return &stubUserDirectory{users: make(map[string]*domain.User)}
}

func (s *stubUserDirectory) put(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := user
	s.users[user.ID] = &copied
}

func (s *stubUserDirectory) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

type storeKey struct {
	userID string
	kind   domain.TimerKind
}

type stubScheduleStore struct {
	mu      sync.Mutex
	entries map[storeKey]domain.ScheduleEntry
	ttls    map[storeKey]time.Duration
	saveErr error
	listErr error

	saves   int
	removes int
	clears  int
}

func newStubScheduleStore() *stubScheduleStore {
	return &stubScheduleStore{
		entries: make(map[storeKey]domain.ScheduleEntry),
		ttls:    make(map[storeKey]time.Duration),
	}
}

func (s *stubScheduleStore) Save(_ context.Context, entry domain.ScheduleEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	key := storeKey{userID: entry.UserID, kind: entry.Kind}
	s.entries[key] = entry
	s.ttls[key] = ttl
	s.saves++
	return nil
}

func (s *stubScheduleStore) Remove(_ context.Context, userID string, kind domain.TimerKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, storeKey{userID: userID, kind: kind})
	s.removes++
	return nil
}

func (s *stubScheduleStore) ListAll(_ context.Context, kind domain.TimerKind) ([]domain.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	result := make([]domain.ScheduleEntry, 0)
	for key, entry := range s.entries {
		if key.kind == kind {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *stubScheduleStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[storeKey]domain.ScheduleEntry)
	s.ttls = make(map[storeKey]time.Duration)
	s.clears++
	return nil
}

func (s *stubScheduleStore) get(userID string, kind domain.TimerKind) (domain.ScheduleEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[storeKey{userID: userID, kind: kind}]
	return entry, ok
}

type stubNotificationGuard struct {
	mu           sync.Mutex
	lockDenied   bool
	lockErr      error
	locked       map[string]bool
	lastNotified map[string]time.Time

	acquires int
	releases int
	marks    int

	sweepDenied   bool
	sweepAcquires int
	sweepReleases int
}

func newStubNotificationGuard() *stubNotificationGuard {
	return &stubNotificationGuard{
		locked:       make(map[string]bool),
		lastNotified: make(map[string]time.Time),
	}
}

func (s *stubNotificationGuard) AcquireLock(_ context.Context, userID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquires++
	if s.lockErr != nil {
		return false, s.lockErr
	}
	if s.lockDenied || s.locked[userID] {
		return false, nil
	}
	s.locked[userID] = true
	return true, nil
}

func (s *stubNotificationGuard) ReleaseLock(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	delete(s.locked, userID)
	return nil
}

func (s *stubNotificationGuard) LastNotifiedAt(_ context.Context, userID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.lastNotified[userID]
	return at, ok, nil
}

func (s *stubNotificationGuard) MarkNotified(_ context.Context, userID string, at time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks++
	s.lastNotified[userID] = at
	return nil
}

func (s *stubNotificationGuard) AcquireSweepLock(_ context.Context, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepAcquires++
	if s.sweepDenied {
		return false, nil
	}
	return true, nil
}

func (s *stubNotificationGuard) ReleaseSweepLock(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepReleases++
	return nil
}

type sentText struct {
	chatID string
	text   string
}

type stubMessenger struct {
	mu       sync.Mutex
	texts    []sentText
	photos   []domain.NotificationPayload
	textErr  error
	photoErr error
}

func (s *stubMessenger) SendText(_ context.Context, chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textErr != nil {
		return s.textErr
	}
	s.texts = append(s.texts, sentText{chatID: chatID, text: text})
	return nil
}

func (s *stubMessenger) SendPhoto(_ context.Context, payload domain.NotificationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photoErr != nil {
		return s.photoErr
	}
	s.photos = append(s.photos, payload)
	return nil
}

func (s *stubMessenger) textCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func (s *stubMessenger) photoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

type stubEventPublisher struct {
	mu     sync.Mutex
	failed []domain.ChallengeFailedEvent
	sent   []domain.NotificationSentEvent
}

func (s *stubEventPublisher) PublishChallengeFailed(_ context.Context, event domain.ChallengeFailedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, event)
	return nil
}

func (s *stubEventPublisher) PublishNotificationSent(_ context.Context, event domain.NotificationSentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, event)
	return nil
}

func (s *stubEventPublisher) failedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed)
}

func (s *stubEventPublisher) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
