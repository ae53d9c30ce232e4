package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/repository"
)

// UserRepository implements port.UserDirectory for PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetUser returns delivery attributes for the user.
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	sqlStmt, args, err := r.builder.
		Select("id", "chat_id", "utc_offset_hours").
		From("bot.users").
		Where(squirrel.Eq{"id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var user domain.User
	if err := r.exec.QueryRow(ctx, sqlStmt, args...).Scan(&user.ID, &user.ChatID, &user.UTCOffsetHours); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &user, nil
}
