package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/repository"
)

const challengesTable = "bot.challenges"

var challengeColumns = []string{
	"id",
	"user_id",
	"status",
	"started_at",
	"duration_days",
	"days_without_workout",
	"successful_days",
	"reminders_enabled",
	"reminder_time",
	"last_miss_check_date",
	"updated_at",
}

// ChallengeRepository implements port.ChallengeGateway for PostgreSQL.
type ChallengeRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewChallengeRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewChallengeRepository(exec pgExecutor) *ChallengeRepository {
	return &ChallengeRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *ChallengeRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// GetActiveChallenge returns the user's active challenge.
func (r *ChallengeRepository) GetActiveChallenge(ctx context.Context, userID string) (*domain.Challenge, error) {
	sqlStmt, args, err := r.builder.
		Select(challengeColumns...).
		From(challengesTable).
		Where(squirrel.Eq{"user_id": userID, "status": string(domain.ChallengeActive)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active challenge sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, sqlStmt, args...)
	challenge, _, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select active challenge: %w", err)
	}

	return challenge, nil
}

func (r *ChallengeRepository) getActiveChallengeRow(ctx context.Context, userID string) (*domain.Challenge, *time.Time, error) {
	sqlStmt, args, err := r.builder.
		Select(challengeColumns...).
		From(challengesTable).
		Where(squirrel.Eq{"user_id": userID, "status": string(domain.ChallengeActive)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, nil, fmt.Errorf("build select active challenge sql: %w", err)
	}

	challenge, lastChecked, err := scanChallenge(r.exec.QueryRow(ctx, sqlStmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, repository.ErrNotFound
		}
		return nil, nil, fmt.Errorf("select active challenge: %w", err)
	}

	return challenge, lastChecked, nil
}

// ListActiveChallenges returns every active challenge across all users.
func (r *ChallengeRepository) ListActiveChallenges(ctx context.Context) ([]domain.Challenge, error) {
	sqlStmt, args, err := r.builder.
		Select(challengeColumns...).
		From(challengesTable).
		Where(squirrel.Eq{"status": string(domain.ChallengeActive)}).
		OrderBy("started_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active challenges sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list active challenges: %w", err)
	}
	defer rows.Close()

	var challenges []domain.Challenge
	for rows.Next() {
		challenge, _, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, *challenge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenges: %w", err)
	}

	return challenges, nil
}

// UpdateReminderTime persists a new reminder time and re-enables reminders
// for the active challenge.
func (r *ChallengeRepository) UpdateReminderTime(ctx context.Context, userID string, timeOfDay domain.TimeOfDay) error {
	sqlStmt, args, err := r.builder.
		Update(challengesTable).
		Set("reminder_time", timeOfDay.String()).
		Set("reminders_enabled", true).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"user_id": userID, "status": string(domain.ChallengeActive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update reminder time sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("update reminder time: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DisableReminders turns the daily reminder off for the active challenge.
func (r *ChallengeRepository) DisableReminders(ctx context.Context, userID string) error {
	sqlStmt, args, err := r.builder.
		Update(challengesTable).
		Set("reminders_enabled", false).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"user_id": userID, "status": string(domain.ChallengeActive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build disable reminders sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("disable reminders: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// FailChallenge forces the active challenge into the failed state and resets
// the miss counter.
func (r *ChallengeRepository) FailChallenge(ctx context.Context, userID string) error {
	sqlStmt, args, err := r.builder.
		Update(challengesTable).
		Set("status", string(domain.ChallengeFailed)).
		Set("days_without_workout", 0).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"user_id": userID, "status": string(domain.ChallengeActive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build fail challenge sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return fmt.Errorf("fail challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// HasProofForDate reports whether a workout was recorded for the given local
// calendar day.
func (r *ChallengeRepository) HasProofForDate(ctx context.Context, userID string, localDate time.Time) (bool, error) {
	sqlStmt, args, err := r.builder.
		Select("1").
		From("bot.workouts").
		Where(squirrel.Eq{"user_id": userID, "workout_date": localDate}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select workout sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, sqlStmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select workout: %w", err)
	}

	return true, nil
}

// CheckAndIncrementMissedDays runs the miss detector for the user's local
// yesterday. The write is conditional on the updated_at value read at the
// start, so a concurrent modification aborts with ErrConcurrentUpdate instead
// of double-applying. Repeat calls for an already examined day are no-ops.
// It returns true when this call transitioned the challenge to failed.
func (r *ChallengeRepository) CheckAndIncrementMissedDays(ctx context.Context, userID string, utcOffsetHours int) (bool, error) {
	if err := domain.ValidateUTCOffset(utcOffsetHours); err != nil {
		return false, err
	}

	challenge, lastChecked, err := r.getActiveChallengeRow(ctx, userID)
	if err != nil {
		return false, err
	}

	now := r.now()
	today := domain.LocalDate(now, utcOffsetHours)
	yesterday := today.AddDate(0, 0, -1)
	startDay := domain.LocalDate(challenge.StartedAt, utcOffsetHours)

	// A challenge created today is not checked until the following local day,
	// and days before the challenge existed never count as misses.
	if !startDay.Before(today) || yesterday.Before(startDay) {
		return false, nil
	}

	if lastChecked != nil && !lastChecked.Before(yesterday) {
		return false, nil
	}

	hasProof, err := r.HasProofForDate(ctx, userID, yesterday)
	if err != nil {
		return false, err
	}

	update := r.builder.
		Update(challengesTable).
		Set("last_miss_check_date", yesterday).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": challenge.ID, "status": string(domain.ChallengeActive)}).
		Where(squirrel.Eq{"updated_at": challenge.UpdatedAt})

	justFailed := false
	if !hasProof {
		misses := challenge.DaysWithoutWorkout + 1
		if misses >= domain.MissThreshold {
			justFailed = true
			update = update.
				Set("status", string(domain.ChallengeFailed)).
				Set("days_without_workout", 0)
		} else {
			update = update.Set("days_without_workout", misses)
		}
	}

	sqlStmt, args, err := update.ToSql()
	if err != nil {
		return false, fmt.Errorf("build miss check update sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return false, fmt.Errorf("apply miss check update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, repository.ErrConcurrentUpdate
	}

	return justFailed, nil
}

func scanChallenge(row pgx.Row) (*domain.Challenge, *time.Time, error) {
	var (
		challenge    domain.Challenge
		reminderRaw  *string
		lastChecked  *time.Time
		statusString string
	)

	if err := row.Scan(
		&challenge.ID,
		&challenge.UserID,
		&statusString,
		&challenge.StartedAt,
		&challenge.DurationDays,
		&challenge.DaysWithoutWorkout,
		&challenge.SuccessfulDays,
		&challenge.RemindersEnabled,
		&reminderRaw,
		&lastChecked,
		&challenge.UpdatedAt,
	); err != nil {
		return nil, nil, err
	}

	challenge.Status = domain.ChallengeStatus(statusString)
	if reminderRaw != nil {
		timeOfDay, err := domain.ParseTimeOfDay(*reminderRaw)
		if err != nil {
			return nil, nil, fmt.Errorf("parse reminder_time: %w", err)
		}
		challenge.ReminderTime = &timeOfDay
	}

	return &challenge, lastChecked, nil
}
