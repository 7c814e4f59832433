// Package retry runs a single provider call with bounded attempts, a
// per-attempt timeout and a fixed delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Operation is one call against a provider. It must honour ctx cancellation
// so a timed-out attempt stops its in-flight work.
type Operation[T any] func(ctx context.Context) (T, error)

// Policy is the per-tier attempt policy.
type Policy struct {
	Name              string
	MaxAttempts       int
	PerAttemptTimeout time.Duration
	InterAttemptDelay time.Duration
}

// PolicyFor builds a Policy from a provider tier.
func PolicyFor(tier models.ProviderTier) Policy {
	return Policy{
		Name:              tier.Name,
		MaxAttempts:       tier.MaxAttempts,
		PerAttemptTimeout: tier.PerAttemptTimeout,
		InterAttemptDelay: tier.InterAttemptDelay,
	}
}

// Do calls op up to p.MaxAttempts times and returns the first successful value.
// A panic, an error or a timeout each count as one failed attempt. When all
// attempts fail the returned error wraps ErrExhausted and the last failure.
// Do returns early, also wrapping ErrExhausted, if ctx is cancelled.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		v, err := attempt(ctx, p.PerAttemptTimeout, op)
		if err == nil {
			return v, nil
		}
		lastErr = err
		log.Printf("[retry] %s attempt %d/%d failed: %v", p.Name, i+1, attempts, err)

		if i < attempts-1 && p.InterAttemptDelay > 0 {
			if err := sleep(ctx, p.InterAttemptDelay); err != nil {
				break
			}
		}
	}
	return zero, fmt.Errorf("%w: %s: %v", ErrExhausted, p.Name, lastErr)
}

type result[T any] struct {
	v   T
	err error
}

// attempt runs op under its own deadline. The deadline is enforced here even
// if op ignores ctx; cancelling attemptCtx still signals op to stop.
func attempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	var zero T
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		v, err := op(attemptCtx)
		done <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return zero, r.err
		}
		return r.v, nil
	case <-attemptCtx.Done():
		return zero, fmt.Errorf("attempt timed out: %w", attemptCtx.Err())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
