// Package health tracks per-provider failure scores and derives whether a
// provider tier should be attempted or skipped.
package health

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

// DefaultFailureThreshold is the request-level failure score at which a tier is skipped.
const DefaultFailureThreshold = 3

// RecoveryPolicy controls how a success lowers a tier's failure score.
type RecoveryPolicy string

const (
	// RecoverDecrement lowers the score by one per success.
	RecoverDecrement RecoveryPolicy = "decrement"
	// RecoverReset clears the score on the first success.
	RecoverReset RecoveryPolicy = "reset"
)

// ParseRecoveryPolicy maps a config value onto a RecoveryPolicy. Empty means decrement.
func ParseRecoveryPolicy(v string) (RecoveryPolicy, error) {
	switch RecoveryPolicy(v) {
	case "", RecoverDecrement:
		return RecoverDecrement, nil
	case RecoverReset:
		return RecoverReset, nil
	}
	return "", fmt.Errorf("unknown recovery policy %q", v)
}

// Metrics is a point-in-time view of one tracked tier.
type Metrics struct {
	Name          string     `json:"name"`
	FailureScore  int        `json:"failureScore"`
	Threshold     int        `json:"threshold"`
	Usable        bool       `json:"usable"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
}

type entry struct {
	score         int
	lastFailureAt time.Time
}

// Tracker holds one failure counter per remote provider tier. All methods are
// safe for concurrent use; each update happens under a single lock so no
// increment or decrement is lost.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	policy    RecoveryPolicy
	entries   map[string]*entry
	static    map[string]struct{}
	now       func() time.Time
}

// NewTracker creates a tracker for the given tiers. Tiers of kind
// DETERMINISTIC_STATIC are always usable and never tracked.
func NewTracker(threshold int, policy RecoveryPolicy, tiers ...models.ProviderTier) *Tracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if policy == "" {
		policy = RecoverDecrement
	}
	t := &Tracker{
		threshold: threshold,
		policy:    policy,
		entries:   map[string]*entry{},
		static:    map[string]struct{}{},
		now:       time.Now,
	}
	for _, tier := range tiers {
		if tier.Kind == models.ProviderDeterministicStatic {
			t.static[tier.Name] = struct{}{}
			continue
		}
		t.entries[tier.Name] = &entry{}
	}
	return t
}

// Threshold returns the failure score at which tiers are skipped.
func (t *Tracker) Threshold() int { return t.threshold }

// IsUsable reports false iff the tier's failure score has reached the threshold.
func (t *Tracker) IsUsable(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.static[name]; ok {
		return true
	}
	e, ok := t.entries[name]
	if !ok {
		return true
	}
	return e.score < t.threshold
}

// RecordSuccess lowers the failure score according to the recovery policy,
// never below zero.
func (t *Tracker) RecordSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(name)
	if e == nil {
		return
	}
	switch t.policy {
	case RecoverReset:
		e.score = 0
	default:
		if e.score > 0 {
			e.score--
		}
	}
}

// RecordFailure raises the failure score by one.
func (t *Tracker) RecordFailure(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(name)
	if e == nil {
		return
	}
	e.score++
	e.lastFailureAt = t.now().UTC()
}

// Reset clears a tier's failure score. It returns false for unknown or static tiers.
func (t *Tracker) Reset(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		return false
	}
	e.score = 0
	return true
}

// Score returns the current failure score for a tier (zero when untracked).
func (t *Tracker) Score(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[name]; ok {
		return e.score
	}
	return 0
}

// Snapshot returns metrics for every tracked tier sorted by name.
func (t *Tracker) Snapshot() []Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Metrics, 0, len(t.entries))
	for name, e := range t.entries {
		m := Metrics{
			Name:         name,
			FailureScore: e.score,
			Threshold:    t.threshold,
			Usable:       e.score < t.threshold,
		}
		if !e.lastFailureAt.IsZero() {
			ts := e.lastFailureAt
			m.LastFailureAt = &ts
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// lookup returns the entry for name, creating one for remote tiers that were
// not registered up front. Callers hold t.mu.
func (t *Tracker) lookup(name string) *entry {
	if _, ok := t.static[name]; ok {
		return nil
	}
	e, ok := t.entries[name]
	if !ok {
		e = &entry{}
		t.entries[name] = e
	}
	return e
}
