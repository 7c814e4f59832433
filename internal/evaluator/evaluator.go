// Package evaluator rates submitted stories through the provider fallback
// chain and maps each rating onto a reward tier.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ILLUVRSE/pizza-rewards/internal/fallback"
	"github.com/ILLUVRSE/pizza-rewards/internal/health"
	"github.com/ILLUVRSE/pizza-rewards/internal/models"
	"github.com/ILLUVRSE/pizza-rewards/internal/scoring"
)

// DefaultMinStoryLength is the shortest story, in characters, that is evaluated.
const DefaultMinStoryLength = 10

// ErrInvalidInput is returned for submissions rejected before any provider is contacted.
var ErrInvalidInput = errors.New("invalid input")

// Provider pairs a remote tier with the scorer that serves it.
type Provider struct {
	Tier   models.ProviderTier
	Scorer scoring.Scorer
}

// Config holds the evaluation limits.
type Config struct {
	MinStoryLength int
	// RequestBudget caps the total time spent on remote tiers per evaluation.
	RequestBudget time.Duration
}

// Evaluator scores stories through the provider chain and maps ratings to tiers.
type Evaluator struct {
	chain  *fallback.Orchestrator[string, scoring.Rating]
	minLen int
}

// New builds the chain remotes..., static. Remotes are tried in order.
func New(cfg Config, tracker *health.Tracker, remotes []Provider, static models.ProviderTier) (*Evaluator, error) {
	stages := make([]fallback.Stage[string, scoring.Rating], 0, len(remotes)+1)
	for _, p := range remotes {
		if p.Scorer == nil {
			return nil, fmt.Errorf("evaluator: tier %q has no scorer", p.Tier.Name)
		}
		stages = append(stages, fallback.Remote(p.Tier, remoteRating(p.Scorer)))
	}
	stages = append(stages, fallback.Static(static, staticRating))

	chain, err := fallback.New(tracker, cfg.RequestBudget, stages...)
	if err != nil {
		return nil, err
	}
	minLen := cfg.MinStoryLength
	if minLen <= 0 {
		minLen = DefaultMinStoryLength
	}
	return &Evaluator{chain: chain, minLen: minLen}, nil
}

// Tiers lists the provider tiers in chain order.
func (e *Evaluator) Tiers() []models.ProviderTier {
	return e.chain.Tiers()
}

// Evaluate rates req.Story. The only error it returns is ErrInvalidInput;
// provider failures degrade the source tier instead.
func (e *Evaluator) Evaluate(ctx context.Context, req models.EvaluationRequest) (models.EvaluationResult, error) {
	story := strings.TrimSpace(req.Story)
	if n := utf8.RuneCountInString(story); n < e.minLen {
		return models.EvaluationResult{}, fmt.Errorf("%w: story has %d characters, need at least %d", ErrInvalidInput, n, e.minLen)
	}

	out := e.chain.Run(ctx, story)
	rating := ClampRating(out.Value.Value)
	return models.EvaluationResult{
		Rating:      rating,
		Tier:        TierForRating(rating),
		SourceTier:  out.Source,
		Explanation: out.Value.Explanation,
	}, nil
}

// TierForRating maps a rating onto a reward tier: 8+ PREMIUM, 6+ STANDARD,
// otherwise BASIC. The rating is clamped to [1,10] first.
func TierForRating(rating int) models.RewardTier {
	switch r := ClampRating(rating); {
	case r >= 8:
		return models.RewardPremium
	case r >= 6:
		return models.RewardStandard
	default:
		return models.RewardBasic
	}
}

// ClampRating bounds r to the valid rating range.
func ClampRating(r int) int {
	if r < scoring.MinRating {
		return scoring.MinRating
	}
	if r > scoring.MaxRating {
		return scoring.MaxRating
	}
	return r
}

func remoteRating(s scoring.Scorer) fallback.RemoteFunc[string, scoring.Rating] {
	return func(ctx context.Context, story string) (scoring.Rating, error) {
		raw, err := s.Score(ctx, story)
		if err != nil {
			return scoring.Rating{}, err
		}
		return scoring.ParseRating(raw)
	}
}

func staticRating(story string) scoring.Rating {
	return scoring.Rating{Value: scoring.StaticRating(story), Explanation: scoring.StaticExplanation}
}
