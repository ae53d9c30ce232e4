package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories aggregates the PostgreSQL-backed repositories.
type Repositories struct {
	Challenges *ChallengeRepository
	Users      *UserRepository
}

// NewRepositories wires every repository to the shared connection pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Challenges: NewChallengeRepository(pool),
		Users:      NewUserRepository(pool),
	}
}
