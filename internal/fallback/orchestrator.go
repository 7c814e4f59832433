// Package fallback walks an ordered chain of provider tiers, skipping tiers
// the health tracker has tripped, retrying each attempted tier through the
// retry package and ending in a deterministic stage that cannot fail.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ILLUVRSE/pizza-rewards/internal/health"
	"github.com/ILLUVRSE/pizza-rewards/internal/models"
	"github.com/ILLUVRSE/pizza-rewards/internal/retry"
)

// RemoteFunc calls an external provider for one input. It may fail.
type RemoteFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// StaticFunc computes a result locally. It has no error return: the terminal
// stage of a chain is total by construction.
type StaticFunc[In, Out any] func(in In) Out

// Stage binds a provider tier to the function that serves it.
type Stage[In, Out any] struct {
	Tier   models.ProviderTier
	remote RemoteFunc[In, Out]
	static StaticFunc[In, Out]
}

// Remote builds a stage for a REMOTE_* tier.
func Remote[In, Out any](tier models.ProviderTier, fn RemoteFunc[In, Out]) Stage[In, Out] {
	return Stage[In, Out]{Tier: tier, remote: fn}
}

// Static builds the terminal DETERMINISTIC_STATIC stage.
func Static[In, Out any](tier models.ProviderTier, fn StaticFunc[In, Out]) Stage[In, Out] {
	return Stage[In, Out]{Tier: tier, static: fn}
}

// Outcome is what one Run produced and which tier produced it.
type Outcome[Out any] struct {
	Value     Out
	Source    string
	Degraded  bool
	Skipped   []string
	Exhausted []string
}

// ErrInvalidChain reports a chain that cannot guarantee a result.
var ErrInvalidChain = errors.New("fallback: invalid chain")

// Orchestrator runs a validated chain. It is safe for concurrent use; the
// only shared state is the health tracker.
type Orchestrator[In, Out any] struct {
	stages []Stage[In, Out]
	health *health.Tracker
	budget time.Duration
}

// New validates the chain and returns an orchestrator. The last stage must be
// the only static stage; every remote stage needs a function and at least one
// attempt. budget caps the wall-clock time spent across all remote tiers of a
// single Run; zero means no cap.
func New[In, Out any](tracker *health.Tracker, budget time.Duration, stages ...Stage[In, Out]) (*Orchestrator[In, Out], error) {
	if tracker == nil {
		return nil, fmt.Errorf("%w: health tracker required", ErrInvalidChain)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: no stages", ErrInvalidChain)
	}
	seen := map[string]bool{}
	for i, st := range stages {
		name := st.Tier.Name
		if name == "" {
			return nil, fmt.Errorf("%w: stage %d has no name", ErrInvalidChain, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate tier %q", ErrInvalidChain, name)
		}
		seen[name] = true

		last := i == len(stages)-1
		isStatic := st.Tier.Kind == models.ProviderDeterministicStatic
		switch {
		case last && (!isStatic || st.static == nil):
			return nil, fmt.Errorf("%w: last tier %q must be a static stage", ErrInvalidChain, name)
		case !last && isStatic:
			return nil, fmt.Errorf("%w: static tier %q must be last", ErrInvalidChain, name)
		case !last && !st.Tier.Kind.Remote():
			return nil, fmt.Errorf("%w: tier %q has unknown kind %q", ErrInvalidChain, name, st.Tier.Kind)
		case !last && st.remote == nil:
			return nil, fmt.Errorf("%w: remote tier %q has no operation", ErrInvalidChain, name)
		case !last && st.Tier.MaxAttempts < 1:
			return nil, fmt.Errorf("%w: remote tier %q needs at least one attempt", ErrInvalidChain, name)
		}
	}
	return &Orchestrator[In, Out]{stages: stages, health: tracker, budget: budget}, nil
}

// Tiers returns the configured tiers in chain order.
func (o *Orchestrator[In, Out]) Tiers() []models.ProviderTier {
	out := make([]models.ProviderTier, len(o.stages))
	for i, st := range o.stages {
		out[i] = st.Tier
	}
	return out
}

// Run walks the chain for one input and always returns an outcome.
func (o *Orchestrator[In, Out]) Run(ctx context.Context, in In) Outcome[Out] {
	var out Outcome[Out]

	remoteCtx := ctx
	if o.budget > 0 {
		var cancel context.CancelFunc
		remoteCtx, cancel = context.WithTimeout(ctx, o.budget)
		defer cancel()
	}

	for _, st := range o.stages {
		name := st.Tier.Name
		if st.static != nil {
			out.Value = st.static(in)
			out.Source = name
			out.Degraded = true
			if len(out.Skipped) > 0 || len(out.Exhausted) > 0 {
				log.Printf("[fallback] served by %s (skipped=%v exhausted=%v)", name, out.Skipped, out.Exhausted)
			}
			return out
		}

		if !o.health.IsUsable(name) {
			log.Printf("[fallback] skipping %s: failure score %d >= %d", name, o.health.Score(name), o.health.Threshold())
			out.Skipped = append(out.Skipped, name)
			continue
		}
		if err := remoteCtx.Err(); err != nil {
			log.Printf("[fallback] skipping %s: %v", name, err)
			out.Skipped = append(out.Skipped, name)
			continue
		}

		remote := st.remote
		v, err := retry.Do(remoteCtx, retry.PolicyFor(st.Tier), func(c context.Context) (Out, error) {
			return remote(c, in)
		})
		if err == nil {
			o.health.RecordSuccess(name)
			out.Value = v
			out.Source = name
			out.Degraded = len(out.Skipped) > 0 || len(out.Exhausted) > 0
			return out
		}

		out.Exhausted = append(out.Exhausted, name)
		if errors.Is(ctx.Err(), context.Canceled) {
			// Cancellation is not a provider failure. A caller deadline is.
			log.Printf("[fallback] %s interrupted by caller: %v", name, ctx.Err())
			continue
		}
		o.health.RecordFailure(name)
		log.Printf("[fallback] %s exhausted (failure score %d): %v", name, o.health.Score(name), err)
	}
	panic("fallback: chain has no static stage")
}
