package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
)

const couponBucket = "coupons"

// BoltLedger keeps coupons in a single-file embedded database.
type BoltLedger struct {
	db *bolt.DB
}

// OpenBoltLedger opens (or creates) the database at path and ensures the
// coupons bucket exists.
func OpenBoltLedger(path string) (*BoltLedger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt ledger: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(couponBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create coupons bucket: %w", err)
	}
	return &BoltLedger{db: db}, nil
}

// Claim runs check-and-put inside one write transaction. Bolt serialises
// writers, so only the first claim for a hash stores its code.
func (b *BoltLedger) Claim(ctx context.Context, code coupon.Code) (coupon.Code, bool, error) {
	var (
		result  coupon.Code
		created bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(couponBucket))
		if existing := bucket.Get([]byte(code.UserHash)); existing != nil {
			return json.Unmarshal(existing, &result)
		}
		data, err := json.Marshal(code)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(code.UserHash), data); err != nil {
			return err
		}
		result, created = code, true
		return nil
	})
	if err != nil {
		return coupon.Code{}, false, fmt.Errorf("bolt claim: %w", err)
	}
	return result, created, nil
}

func (b *BoltLedger) Lookup(ctx context.Context, userHash string) (coupon.Code, error) {
	var c coupon.Code
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(couponBucket)).Get([]byte(userHash))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &c)
	})
	if err != nil {
		return coupon.Code{}, err
	}
	return c, nil
}

func (b *BoltLedger) Ping(ctx context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error { return nil })
}

func (b *BoltLedger) Close() error {
	return b.db.Close()
}
