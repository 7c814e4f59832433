package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/pizza-rewards/internal/health"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Addr)
	assert.Equal(t, "CONF24", cfg.ConferenceID)
	assert.Equal(t, 10, cfg.MinStoryLength)
	assert.Equal(t, 2, cfg.ScorerAttempts)
	assert.Equal(t, 10*time.Second, cfg.ScorerTimeout)
	assert.Equal(t, 25*time.Second, cfg.RequestBudget)
	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, health.RecoverDecrement, cfg.RecoveryPolicy)
	assert.Equal(t, "story-rewards.analytics", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	t.Setenv("REWARDS_CONFERENCE_ID", "GOPHERCON")
	t.Setenv("REWARDS_RECOVERY_POLICY", "reset")
	t.Setenv("REWARDS_SCORER_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DATABASE_URL", "postgres://fallback")
	t.Setenv("REWARDS_DATABASE_URL", "postgres://rewards")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "GOPHERCON", cfg.ConferenceID)
	assert.Equal(t, health.RecoverReset, cfg.RecoveryPolicy)
	assert.Equal(t, 3*time.Second, cfg.ScorerTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "postgres://rewards", cfg.DatabaseURL)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"dashed conference":  {"REWARDS_CONFERENCE_ID": "CONF-24"},
		"underscore conf":    {"REWARDS_CONFERENCE_ID": "TIDAL_HACKS"},
		"zero budget":        {"REWARDS_REQUEST_BUDGET": "0"},
		"negative budget":    {"REWARDS_REQUEST_BUDGET": "-5s"},
		"zero threshold":     {"REWARDS_FAILURE_THRESHOLD": "0"},
		"zero attempts":      {"REWARDS_SCORER_ATTEMPTS": "0"},
		"unknown recovery":   {"REWARDS_RECOVERY_POLICY": "forgive"},
		"production no auth": {"NODE_ENV": "production"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("NODE_ENV", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestProductionDisablesDevVendor(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("REWARDS_VENDOR_JWT_SECRET", "s3cret")
	t.Setenv("REWARDS_ALLOW_DEV_VENDOR", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.AllowDevVendor)
}
