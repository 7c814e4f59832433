// Package service runs the submission pipeline: returning-user check,
// evaluation, coupon issuance and analytics hand-off.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
	"github.com/ILLUVRSE/pizza-rewards/internal/evaluator"
	"github.com/ILLUVRSE/pizza-rewards/internal/health"
	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

// ErrInvalidInput aliases the evaluator's sentinel so transport code has one
// value to match.
var ErrInvalidInput = evaluator.ErrInvalidInput

// ErrUnknownProvider is returned when resetting a tier that is not tracked.
var ErrUnknownProvider = errors.New("unknown provider")

type StoryEvaluator interface {
	Evaluate(ctx context.Context, req models.EvaluationRequest) (models.EvaluationResult, error)
}

// Recorder accepts analytics records without blocking.
type Recorder interface {
	Enqueue(rec models.AnalyticsRecord) bool
}

type Service struct {
	evaluator    StoryEvaluator
	issuer       *coupon.Issuer
	tracker      *health.Tracker
	recorder     Recorder
	conferenceID string
	now          func() time.Time
}

func New(conferenceID string, eval StoryEvaluator, issuer *coupon.Issuer, tracker *health.Tracker, recorder Recorder) *Service {
	return &Service{
		evaluator:    eval,
		issuer:       issuer,
		tracker:      tracker,
		recorder:     recorder,
		conferenceID: conferenceID,
		now:          time.Now,
	}
}

// WithClock replaces the time source; tests use it to pin coupon times.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type SubmitRequest struct {
	UserID string `json:"userId"`
	Story  string `json:"story"`
}

type SubmitResult struct {
	Code          string            `json:"code"`
	Tier          models.RewardTier `json:"tier"`
	PizzaSize     string            `json:"pizzaSize"`
	Description   string            `json:"description"`
	Rating        int               `json:"rating,omitempty"`
	SourceTier    string            `json:"sourceTier,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
	AlreadyIssued bool              `json:"alreadyIssued"`
}

// Submit evaluates a story and issues the user's coupon. A user who already
// holds a coupon gets it back without any provider being contacted.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return SubmitResult{}, fmt.Errorf("%w: userId required", ErrInvalidInput)
	}
	userHash := coupon.HashUser(userID)

	existing, err := s.issuer.Existing(ctx, userHash)
	switch {
	case err == nil:
		log.Printf("[service] user %s already holds %s", userHash, existing.String())
		return repeatResult(existing), nil
	case !errors.Is(err, coupon.ErrNotIssued):
		return SubmitResult{}, fmt.Errorf("lookup coupon: %w", err)
	}

	submittedAt := s.now()
	res, err := s.evaluator.Evaluate(ctx, models.EvaluationRequest{
		UserID:      userID,
		Story:       req.Story,
		SubmittedAt: submittedAt,
	})
	if err != nil {
		return SubmitResult{}, err
	}

	code, err := s.issuer.Issue(ctx, userHash, s.conferenceID, res.Tier, submittedAt)
	if errors.Is(err, coupon.ErrAlreadyIssued) {
		log.Printf("[service] concurrent submission for %s, returning %s", userHash, code.String())
		return repeatResult(code), nil
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("issue coupon: %w", err)
	}

	if s.recorder != nil {
		s.recorder.Enqueue(models.AnalyticsRecord{
			EventID:     uuid.NewString(),
			EventType:   models.EventCouponIssued,
			Rating:      res.Rating,
			Tier:        res.Tier,
			SourceTier:  res.SourceTier,
			Timestamp:   submittedAt.UTC(),
			UserHash:    userHash,
			StoryLength: utf8.RuneCountInString(strings.TrimSpace(req.Story)),
		})
	}

	return SubmitResult{
		Code:        code.String(),
		Tier:        code.Tier,
		PizzaSize:   code.Tier.PizzaSize(),
		Description: code.Tier.Description(),
		Rating:      res.Rating,
		SourceTier:  res.SourceTier,
		Explanation: res.Explanation,
	}, nil
}

func repeatResult(c coupon.Code) SubmitResult {
	return SubmitResult{
		Code:          c.String(),
		Tier:          c.Tier,
		PizzaSize:     c.Tier.PizzaSize(),
		Description:   c.Tier.Description(),
		AlreadyIssued: true,
	}
}

// CouponInfo is what a vendor sees for a valid coupon.
type CouponInfo struct {
	Valid        bool              `json:"valid"`
	Code         string            `json:"code"`
	ConferenceID string            `json:"conferenceId"`
	Tier         models.RewardTier `json:"tier"`
	UserHash     string            `json:"userHash"`
	TimeIssued   string            `json:"timeIssued"`
	PizzaSize    string            `json:"pizzaSize"`
	Description  string            `json:"description"`
}

// ValidateCoupon decodes a vendor-supplied code against this conference.
// Failures carry coupon.ErrInvalidFormat, ErrConferenceMismatch or ErrUnknownTier.
func (s *Service) ValidateCoupon(raw string) (CouponInfo, error) {
	c, err := coupon.Parse(raw, s.conferenceID)
	if err != nil {
		return CouponInfo{}, err
	}
	return Describe(c), nil
}

// Describe expands a parsed code into vendor-facing details.
func Describe(c coupon.Code) CouponInfo {
	return CouponInfo{
		Valid:        true,
		Code:         c.String(),
		ConferenceID: c.ConferenceID,
		Tier:         c.Tier,
		UserHash:     c.UserHash,
		TimeIssued:   c.TimeIssued(),
		PizzaSize:    c.Tier.PizzaSize(),
		Description:  c.Tier.Description(),
	}
}

// ProviderHealth reports the failure score of every remote tier.
func (s *Service) ProviderHealth() []health.Metrics {
	return s.tracker.Snapshot()
}

// ResetProvider clears a tier's failure score.
func (s *Service) ResetProvider(name string) error {
	if !s.tracker.Reset(name) {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	log.Printf("[service] provider %s reset", name)
	return nil
}
