package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
	"github.com/ILLUVRSE/pizza-rewards/internal/health"
)

type ScorerConfig struct {
	URL    string
	APIKey string
	Model  string
}

type Config struct {
	Addr           string
	ConferenceID   string
	MinStoryLength int

	PrimaryScorer    ScorerConfig
	SecondaryScorer  ScorerConfig
	ScorerAttempts   int
	ScorerTimeout    time.Duration
	ScorerRetryDelay time.Duration
	RequestBudget    time.Duration

	FailureThreshold int
	RecoveryPolicy   health.RecoveryPolicy

	DatabaseURL string
	BoltPath    string

	KafkaBrokers    []string
	KafkaTopic      string
	S3Bucket        string
	S3Prefix        string
	AnalyticsBuffer int

	VendorJWTSecret string
	AllowDevVendor  bool
}

const (
	defaultAddr             = ":8090"
	defaultConferenceID     = "CONF24"
	defaultMinStoryLength   = 10
	defaultScorerAttempts   = 2
	defaultScorerTimeout    = 10 * time.Second
	defaultScorerRetryDelay = 500 * time.Millisecond
	defaultRequestBudget    = 25 * time.Second
	defaultKafkaTopic       = "story-rewards.analytics"
	defaultAnalyticsBuffer  = 256
)

func Load() (Config, error) {
	cfg := Config{
		Addr:           getEnv("REWARDS_ADDR", defaultAddr),
		ConferenceID:   getEnv("REWARDS_CONFERENCE_ID", defaultConferenceID),
		MinStoryLength: getInt("REWARDS_MIN_STORY_LENGTH", defaultMinStoryLength),
		PrimaryScorer: ScorerConfig{
			URL:    os.Getenv("REWARDS_PRIMARY_SCORER_URL"),
			APIKey: os.Getenv("REWARDS_PRIMARY_SCORER_KEY"),
			Model:  os.Getenv("REWARDS_PRIMARY_SCORER_MODEL"),
		},
		SecondaryScorer: ScorerConfig{
			URL:    os.Getenv("REWARDS_SECONDARY_SCORER_URL"),
			APIKey: os.Getenv("REWARDS_SECONDARY_SCORER_KEY"),
			Model:  os.Getenv("REWARDS_SECONDARY_SCORER_MODEL"),
		},
		ScorerAttempts:   getInt("REWARDS_SCORER_ATTEMPTS", defaultScorerAttempts),
		ScorerTimeout:    getDuration("REWARDS_SCORER_TIMEOUT", defaultScorerTimeout),
		ScorerRetryDelay: getDuration("REWARDS_SCORER_RETRY_DELAY", defaultScorerRetryDelay),
		RequestBudget:    getDuration("REWARDS_REQUEST_BUDGET", defaultRequestBudget),
		FailureThreshold: getInt("REWARDS_FAILURE_THRESHOLD", health.DefaultFailureThreshold),
		DatabaseURL:      firstNonEmpty(os.Getenv("REWARDS_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		BoltPath:         os.Getenv("REWARDS_BOLT_PATH"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       getEnv("REWARDS_KAFKA_TOPIC", defaultKafkaTopic),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Prefix:         os.Getenv("S3_PREFIX"),
		AnalyticsBuffer:  getInt("REWARDS_ANALYTICS_BUFFER", defaultAnalyticsBuffer),
		VendorJWTSecret:  os.Getenv("REWARDS_VENDOR_JWT_SECRET"),
		AllowDevVendor:   getBool("REWARDS_ALLOW_DEV_VENDOR", false),
	}

	policy, err := health.ParseRecoveryPolicy(os.Getenv("REWARDS_RECOVERY_POLICY"))
	if err != nil {
		return Config{}, fmt.Errorf("REWARDS_RECOVERY_POLICY: %w", err)
	}
	cfg.RecoveryPolicy = policy

	if err := coupon.ValidateConferenceID(cfg.ConferenceID); err != nil {
		return Config{}, fmt.Errorf("REWARDS_CONFERENCE_ID: %w", err)
	}
	if cfg.FailureThreshold < 1 {
		return Config{}, fmt.Errorf("REWARDS_FAILURE_THRESHOLD must be at least 1")
	}
	if cfg.ScorerAttempts < 1 {
		return Config{}, fmt.Errorf("REWARDS_SCORER_ATTEMPTS must be at least 1")
	}
	if cfg.RequestBudget <= 0 {
		return Config{}, fmt.Errorf("REWARDS_REQUEST_BUDGET must be positive")
	}
	if os.Getenv("NODE_ENV") == "production" {
		if cfg.VendorJWTSecret == "" {
			return Config{}, fmt.Errorf("REWARDS_VENDOR_JWT_SECRET required in production")
		}
		cfg.AllowDevVendor = false
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
