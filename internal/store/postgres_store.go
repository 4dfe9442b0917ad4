package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	// Arbitrary application-wide key for pg_advisory_lock.
	postgresRotationLockID int64 = 0x7465636e65777300

	postgresUniqueViolation = "23505"

	postgresSchema = `
CREATE TABLE IF NOT EXISTS signing_keys (
	id          TEXT PRIMARY KEY,
	algorithm   TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	private_key BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS signing_keys_created_at_idx ON signing_keys (created_at DESC);`
)

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*postgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (p *postgresStore) Close() {
	p.pool.Close()
}

func (p *postgresStore) Load(ctx context.Context) ([]Record, error) {
	const q = `
SELECT id, algorithm, created_at, private_key
FROM signing_keys
ORDER BY created_at DESC`
	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query signing keys: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Algorithm, &r.CreatedAt, &r.PrivateKey); err != nil {
			return nil, fmt.Errorf("failed to scan signing key: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signing keys: %w", err)
	}
	return out, nil
}

func (p *postgresStore) Save(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO signing_keys (id, algorithm, created_at, private_key)
VALUES ($1, $2, $3, $4)`
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, r.ID, r.Algorithm, r.CreatedAt.UTC(), r.PrivateKey)
		return err
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateKeyID, r.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert signing key: %w", err)
	}
	return nil
}

// Lock takes a session-level advisory lock on a dedicated connection, which
// is held until unlock is called.
func (p *postgresStore) Lock(ctx context.Context) (func(), error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire postgres connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", postgresRotationLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	return func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", postgresRotationLockID); err != nil {
			logrus.WithError(err).Error("failed to release advisory lock")
			// Destroy the connection so the session lock dies with it.
			conn.Conn().Close(context.Background())
		}
		conn.Release()
	}, nil
}
