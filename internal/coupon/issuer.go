package coupon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

var (
	// ErrAlreadyIssued is returned alongside the user's existing code.
	ErrAlreadyIssued = errors.New("coupon: already issued for user")
	// ErrNotIssued is returned by ledgers when a user has no code.
	ErrNotIssued = errors.New("coupon: not issued")
)

// Ledger records at most one coupon per user hash. Claim must be atomic:
// among concurrent claims for the same hash exactly one reports created.
type Ledger interface {
	Claim(ctx context.Context, code Code) (stored Code, created bool, err error)
	Lookup(ctx context.Context, userHash string) (Code, error)
}

type Issuer struct {
	ledger Ledger
}

func NewIssuer(ledger Ledger) *Issuer {
	return &Issuer{ledger: ledger}
}

// Issue creates a coupon for userHash. A user who already holds one gets
// that code back together with ErrAlreadyIssued.
func (i *Issuer) Issue(ctx context.Context, userHash, conferenceID string, tier models.RewardTier, now time.Time) (Code, error) {
	code, err := New(conferenceID, tier, userHash, now)
	if err != nil {
		return Code{}, err
	}
	stored, created, err := i.ledger.Claim(ctx, code)
	if err != nil {
		return Code{}, fmt.Errorf("coupon: claim %s: %w", userHash, err)
	}
	if !created {
		return stored, ErrAlreadyIssued
	}
	log.Printf("[coupon] issued %s tier=%s", stored.String(), stored.Tier)
	return stored, nil
}

// Existing returns the code already issued to userHash, or ErrNotIssued.
func (i *Issuer) Existing(ctx context.Context, userHash string) (Code, error) {
	return i.ledger.Lookup(ctx, userHash)
}
