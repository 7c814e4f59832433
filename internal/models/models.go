package models

import (
	"time"
)

// ProviderKind identifies the role a provider tier plays in the fallback chain.
type ProviderKind string

const (
	ProviderRemotePrimary       ProviderKind = "REMOTE_PRIMARY"
	ProviderRemoteSecondary     ProviderKind = "REMOTE_SECONDARY"
	ProviderDeterministicStatic ProviderKind = "DETERMINISTIC_STATIC"
)

// Remote reports whether the kind is backed by an external service.
func (k ProviderKind) Remote() bool {
	return k == ProviderRemotePrimary || k == ProviderRemoteSecondary
}

// ProviderTier is one stage of the fallback chain.
type ProviderTier struct {
	Name              string        `json:"name"`
	Kind              ProviderKind  `json:"kind"`
	MaxAttempts       int           `json:"maxAttempts"`
	PerAttemptTimeout time.Duration `json:"perAttemptTimeout"`
	InterAttemptDelay time.Duration `json:"interAttemptDelay"`
}

// RewardTier is the coupon quality level derived from a rating.
type RewardTier string

const (
	RewardBasic    RewardTier = "BASIC"
	RewardStandard RewardTier = "STANDARD"
	RewardPremium  RewardTier = "PREMIUM"
)

// Valid reports whether t is one of the known reward tiers.
func (t RewardTier) Valid() bool {
	switch t {
	case RewardBasic, RewardStandard, RewardPremium:
		return true
	}
	return false
}

// PizzaSize is the vendor-facing size printed for a reward tier.
func (t RewardTier) PizzaSize() string {
	switch t {
	case RewardPremium:
		return "LARGE"
	case RewardStandard:
		return "MEDIUM"
	case RewardBasic:
		return "REGULAR"
	}
	return ""
}

// Description is the human-readable reward text for a tier.
func (t RewardTier) Description() string {
	switch t {
	case RewardPremium:
		return "LARGE pizza with premium toppings"
	case RewardStandard:
		return "MEDIUM pizza with your choice of toppings"
	case RewardBasic:
		return "REGULAR pizza - still delicious!"
	}
	return "Pizza!"
}

type EvaluationRequest struct {
	UserID      string    `json:"userId"`
	Story       string    `json:"story"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type EvaluationResult struct {
	Rating      int        `json:"rating"`
	Tier        RewardTier `json:"tier"`
	SourceTier  string     `json:"sourceTier"`
	Explanation string     `json:"explanation,omitempty"`
}

// AnalyticsRecord is emitted once per successful issuance.
type AnalyticsRecord struct {
	EventID     string     `json:"eventId"`
	EventType   string     `json:"eventType"`
	Rating      int        `json:"rating"`
	Tier        RewardTier `json:"tier"`
	SourceTier  string     `json:"sourceTier"`
	Timestamp   time.Time  `json:"timestamp"`
	UserHash    string     `json:"userHash"`
	StoryLength int        `json:"storyLength"`
}

const EventCouponIssued = "coupon_issued"
