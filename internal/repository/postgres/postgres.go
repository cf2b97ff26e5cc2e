// Package postgres implements the repository interfaces on PostgreSQL via pgx.
//
// It is selected with DB_DRIVER=postgres (or when DATABASE_URL is set) for
// deployments that run more than one API process against a shared database.
//
// CONCURRENCY MODEL:
// Unlike the SQLite store there is no single connection serialising everything,
// so every mutation runs in a SERIALIZABLE transaction and locks the pending
// rows it is about to touch with SELECT ... FOR UPDATE, always in id order so
// two transactions never wait on each other in opposite directions. If
// Postgres still aborts a transaction with a serialization failure or a
// deadlock, the whole transaction is retried with exponential backoff. A retry
// re-reads everything, so a loser of a race sees the winner's result (for
// example "request no longer pending" → not found).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	maxTxRetries = 5
)

// Store is a pgx connection pool implementing repository.UserRepository and
// repository.MatchRepository.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, pings it and runs migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	pingCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return s, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL,
			role          TEXT NOT NULL CHECK (role IN ('mentor', 'mentee')),
			bio           TEXT NOT NULL DEFAULT '',
			skills        TEXT NOT NULL DEFAULT '[]',
			experience    INTEGER,
			hourly_rate   NUMERIC(10, 2),
			profile_image TEXT NOT NULL DEFAULT '',
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role, is_active);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS match_requests (
			id         TEXT PRIMARY KEY,
			mentee_id  TEXT NOT NULL REFERENCES users(id),
			mentor_id  TEXT NOT NULL REFERENCES users(id),
			message    TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'pending'
			           CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_match_requests_mentor ON match_requests(mentor_id, status);
		CREATE INDEX IF NOT EXISTS idx_match_requests_mentee ON match_requests(mentee_id, status);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_match_requests_one_pending
			ON match_requests(mentee_id) WHERE status = 'pending';
	`)
	if err != nil {
		return fmt.Errorf("creating match_requests table: %w", err)
	}
	return nil
}

// inTx runs fn in a SERIALIZABLE transaction, retrying the whole transaction
// on serialization failures and deadlocks. fn must not keep state across
// attempts other than what it assigns on success.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	op := func() error {
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err == nil || isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 3 * time.Second

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxTxRetries), ctx))
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// now matches the microsecond precision of TIMESTAMPTZ so values written and
// values read back compare equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
