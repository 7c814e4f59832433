// Package store holds the coupon ledger backends: Postgres, Bolt and in-memory.
// Every backend claims a user hash atomically so a user holds at most one code.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

// ErrNotFound aliases coupon.ErrNotIssued so callers can match either.
var ErrNotFound = coupon.ErrNotIssued

// LedgerStore is a coupon ledger that also reports backend reachability.
type LedgerStore interface {
	coupon.Ledger
	Ping(ctx context.Context) error
	Close() error
}

// PGLedger keeps coupons in the coupons table keyed by user hash.
type PGLedger struct {
	db *sql.DB
}

// NewPGLedger returns a PGLedger and ensures the coupons table exists.
func NewPGLedger(ctx context.Context, db *sql.DB) (*PGLedger, error) {
	l := &PGLedger{db: db}
	if err := l.ensureTable(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PGLedger) ensureTable(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS coupons (
  user_hash text PRIMARY KEY,
  conference_id text NOT NULL,
  tier text NOT NULL,
  issued_at_compact text NOT NULL,
  code text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_coupons_conference ON coupons (conference_id);
`
	if _, err := l.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create coupons table: %w", err)
	}
	return nil
}

// Claim inserts code unless the user hash already has a row. The primary key
// makes concurrent claims race safely inside Postgres.
func (l *PGLedger) Claim(ctx context.Context, code coupon.Code) (coupon.Code, bool, error) {
	const q = `
INSERT INTO coupons (user_hash, conference_id, tier, issued_at_compact, code)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_hash) DO NOTHING
`
	res, err := l.db.ExecContext(ctx, q, code.UserHash, code.ConferenceID, string(code.Tier), code.IssuedAtCompact, code.String())
	if err != nil {
		return coupon.Code{}, false, fmt.Errorf("insert coupon: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return coupon.Code{}, false, fmt.Errorf("insert coupon: %w", err)
	}
	if n == 1 {
		return code, true, nil
	}
	existing, err := l.Lookup(ctx, code.UserHash)
	if err != nil {
		return coupon.Code{}, false, err
	}
	return existing, false, nil
}

func (l *PGLedger) Lookup(ctx context.Context, userHash string) (coupon.Code, error) {
	const q = `SELECT conference_id, tier, issued_at_compact FROM coupons WHERE user_hash=$1`
	var (
		conf, tier, compact string
	)
	if err := l.db.QueryRowContext(ctx, q, userHash).Scan(&conf, &tier, &compact); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return coupon.Code{}, ErrNotFound
		}
		return coupon.Code{}, fmt.Errorf("query coupon: %w", err)
	}
	return coupon.Code{
		ConferenceID:    conf,
		Tier:            models.RewardTier(tier),
		UserHash:        userHash,
		IssuedAtCompact: compact,
	}, nil
}

func (l *PGLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *PGLedger) Close() error {
	return l.db.Close()
}
