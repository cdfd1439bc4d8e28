package lease

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed lease stored in the leases table.
type PG struct {
	pool pgxQuerier
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPGWithQuerier constructs a PostgreSQL-backed lease over any querier.
func NewPGWithQuerier(q pgxQuerier) *PG {
	return &PG{pool: q}
}

// TryAcquire inserts the lease or takes over an expired one in a single statement.
func (l *PG) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token, err := uuid.NewV4()
	if err != nil {
		return "", false, err
	}
	const q = `
INSERT INTO leases (key, token, expires_at)
VALUES ($1, $2, now() + $3::interval)
ON CONFLICT (key) DO UPDATE
SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
WHERE leases.expires_at <= now()
RETURNING token`
	var got string
	err = l.pool.QueryRow(ctx, q, key, token.String(), ttl).Scan(&got)
	switch {
	case err == nil:
		return got, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", false, nil
	default:
		return "", false, err
	}
}

// Release deletes the lease if token still owns it.
func (l *PG) Release(ctx context.Context, key, token string) error {
	const q = `DELETE FROM leases WHERE key=$1 AND token=$2`
	_, err := l.pool.Exec(ctx, q, key, token)
	return err
}
