package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time assertion that PostgresStore satisfies the Store interface.
var _ Store = (*PostgresStore)(nil)

// uniqueViolation is the PostgreSQL error code for unique-constraint
// violations, used to map duplicate emails onto [ErrDuplicateEmail].
const uniqueViolation = "23505"

// PostgresStore is a PostgreSQL-backed implementation of [Store]. All
// operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore establishes a connection pool to the database at dsn and
// ensures the users table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("identity store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("identity store: ping: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("identity store: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// migrate creates the users table when it does not exist yet.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Create implements [Store.Create].
func (s *PostgresStore) Create(ctx context.Context, email, passwordHash string) (User, error) {
	var user User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, password_hash, created_at`,
		email, passwordHash,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return User{}, ErrDuplicateEmail
	}
	if err != nil {
		return User{}, fmt.Errorf("identity store: insert user: %w", err)
	}
	return user, nil
}

// GetByEmail implements [Store.GetByEmail].
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.scanOne(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE email = $1`, email)
}

// GetByID implements [Store.GetByID].
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (User, error) {
	return s.scanOne(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg any) (User, error) {
	var user User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("identity store: query user: %w", err)
	}
	return user, nil
}

// Ping reports whether the database is reachable. Used by the readiness
// probe.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
