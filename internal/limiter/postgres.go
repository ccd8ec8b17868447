package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of a pgx pool the limiter needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps attempt counters in the login_attempts table.
type PG struct {
	q      Querier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter. Zero policy fields fall back to DefaultPolicy.
func NewPG(q Querier, policy Policy) *PG {
	if policy.Window <= 0 {
		policy.Window = DefaultPolicy.Window
	}
	if policy.MaxFails <= 0 {
		policy.MaxFails = DefaultPolicy.MaxFails
	}
	if policy.BlockFor <= 0 {
		policy.BlockFor = DefaultPolicy.BlockFor
	}
	return &PG{q: q, policy: policy, now: time.Now}
}

// Allow reports the remaining lockout for key, or 0.
func (l *PG) Allow(ctx context.Context, key Key) (time.Duration, error) {
	const q = `SELECT blocked_until FROM login_attempts WHERE username=$1 AND client_hash=$2`
	var blockedUntil *time.Time
	err := l.q.QueryRow(ctx, q, key.Username, key.Client).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, err
	}
	if blockedUntil == nil {
		return 0, nil
	}
	if left := blockedUntil.Sub(l.now()); left > 0 {
		return left, nil
	}
	return 0, nil
}

// Failure bumps the counter inside the current window and locks the key at MaxFails.
func (l *PG) Failure(ctx context.Context, key Key) (bool, error) {
	const bump = `
INSERT INTO login_attempts (username, client_hash, failures, window_start)
VALUES ($1, $2, 1, $3)
ON CONFLICT (username, client_hash) DO UPDATE SET
  failures = CASE WHEN login_attempts.window_start < $4 THEN 1 ELSE login_attempts.failures + 1 END,
  window_start = CASE WHEN login_attempts.window_start < $4 THEN $3 ELSE login_attempts.window_start END
RETURNING failures`
	now := l.now()
	var failures int
	if err := l.q.QueryRow(ctx, bump, key.Username, key.Client, now, now.Add(-l.policy.Window)).Scan(&failures); err != nil {
		return false, err
	}
	if failures < l.policy.MaxFails {
		return false, nil
	}

	const lock = `UPDATE login_attempts SET blocked_until=$3, failures=0, window_start=$4 WHERE username=$1 AND client_hash=$2`
	if _, err := l.q.Exec(ctx, lock, key.Username, key.Client, now.Add(l.policy.BlockFor), now); err != nil {
		return false, err
	}
	return true, nil
}

// Reset forgets the key.
func (l *PG) Reset(ctx context.Context, key Key) error {
	const q = `DELETE FROM login_attempts WHERE username=$1 AND client_hash=$2`
	_, err := l.q.Exec(ctx, q, key.Username, key.Client)
	return err
}
