package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
)

const (
	defaultSchedulePrefix = "bot:schedule"

	fieldUserID      = "user_id"
	fieldFireAt      = "fire_at"
	fieldUTCOffset   = "utc_offset"
	fieldChallengeID = "challenge_id"
	fieldTimeOfDay   = "time_of_day"
	fieldMissCount   = "miss_count"
	fieldTerminal    = "terminal"
)

// ScheduleStore mirrors armed timers in Redis for crash recovery. One hash
// per (user, kind), expiring on its own so stale entries cannot accumulate.
type ScheduleStore struct {
	client *red.Client
	prefix string
}

// NewScheduleStore constructs a store with the provided Redis client and key prefix.
func NewScheduleStore(client *red.Client, keyPrefix string) *ScheduleStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSchedulePrefix
	}

	return &ScheduleStore{client: client, prefix: prefix}
}

// Save upserts the mirror entry for (entry.UserID, entry.Kind) with the supplied TTL.
func (s *ScheduleStore) Save(ctx context.Context, entry domain.ScheduleEntry, ttl time.Duration) error {
	switch {
	case strings.TrimSpace(entry.UserID) == "":
		return errors.New("user id is required")
	case entry.Kind == "":
		return errors.New("timer kind is required")
	case entry.FireAt.IsZero():
		return errors.New("fire time is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	fields := map[string]any{
		fieldUserID:      entry.UserID,
		fieldFireAt:      entry.FireAt.UTC().Format(time.RFC3339),
		fieldUTCOffset:   strconv.Itoa(entry.UTCOffsetHours),
		fieldChallengeID: entry.ChallengeID,
		fieldMissCount:   strconv.Itoa(entry.MissCount),
		fieldTerminal:    strconv.FormatBool(entry.Terminal),
	}
	if entry.TimeOfDay != nil {
		fields[fieldTimeOfDay] = entry.TimeOfDay.String()
	}

	key := s.key(entry.Kind, entry.UserID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save schedule entry: %w", err)
	}

	return nil
}

// Remove deletes the mirror entry. Removing a missing entry is a no-op.
func (s *ScheduleStore) Remove(ctx context.Context, userID string, kind domain.TimerKind) error {
	if err := s.client.Del(ctx, s.key(kind, userID)).Err(); err != nil {
		return fmt.Errorf("redis remove schedule entry: %w", err)
	}
	return nil
}

// ListAll returns every mirrored entry of the given kind.
func (s *ScheduleStore) ListAll(ctx context.Context, kind domain.TimerKind) ([]domain.ScheduleEntry, error) {
	pattern := fmt.Sprintf("%s:%s:*", s.prefix, kind)

	var entries []domain.ScheduleEntry
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		values, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis hgetall schedule entry: %w", err)
		}
		if len(values) == 0 {
			continue
		}

		entry, err := parseEntry(kind, values)
		if err != nil {
			return nil, fmt.Errorf("parse schedule entry %s: %w", iter.Val(), err)
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan schedule entries: %w", err)
	}

	return entries, nil
}

// Clear drops every mirrored entry of every kind.
func (s *ScheduleStore) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:*", s.prefix)

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear schedule entry: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan schedule entries: %w", err)
	}

	return nil
}

func (s *ScheduleStore) key(kind domain.TimerKind, userID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, userID)
}

func parseEntry(kind domain.TimerKind, values map[string]string) (domain.ScheduleEntry, error) {
	fireAt, err := time.Parse(time.RFC3339, values[fieldFireAt])
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("parse fire_at: %w", err)
	}

	offset, err := strconv.Atoi(values[fieldUTCOffset])
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("parse utc_offset: %w", err)
	}

	entry := domain.ScheduleEntry{
		UserID:         values[fieldUserID],
		Kind:           kind,
		FireAt:         fireAt,
		UTCOffsetHours: offset,
		ChallengeID:    values[fieldChallengeID],
	}

	if raw := values[fieldTimeOfDay]; raw != "" {
		timeOfDay, err := domain.ParseTimeOfDay(raw)
		if err != nil {
			return domain.ScheduleEntry{}, fmt.Errorf("parse time_of_day: %w", err)
		}
		entry.TimeOfDay = &timeOfDay
	}

	if raw := values[fieldMissCount]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			entry.MissCount = v
		}
	}
	if raw := values[fieldTerminal]; raw != "" {
		if v, convErr := strconv.ParseBool(raw); convErr == nil {
			entry.Terminal = v
		}
	}

	return entry, nil
}
