package health

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

func testTiers() []models.ProviderTier {
	return []models.ProviderTier{
		{Name: "primary", Kind: models.ProviderRemotePrimary, MaxAttempts: 2},
		{Name: "secondary", Kind: models.ProviderRemoteSecondary, MaxAttempts: 2},
		{Name: "static", Kind: models.ProviderDeterministicStatic, MaxAttempts: 1},
	}
}

func TestTrackerTripsAtThreshold(t *testing.T) {
	tr := NewTracker(3, RecoverDecrement, testTiers()...)

	for i := 0; i < 2; i++ {
		tr.RecordFailure("primary")
		assert.True(t, tr.IsUsable("primary"), "failure %d should not trip", i+1)
	}
	tr.RecordFailure("primary")
	assert.False(t, tr.IsUsable("primary"))
	assert.True(t, tr.IsUsable("secondary"))
}

func TestTrackerDecrementRecovery(t *testing.T) {
	tr := NewTracker(3, RecoverDecrement, testTiers()...)
	for i := 0; i < 4; i++ {
		tr.RecordFailure("primary")
	}
	require.Equal(t, 4, tr.Score("primary"))

	tr.RecordSuccess("primary")
	assert.Equal(t, 3, tr.Score("primary"))
	assert.False(t, tr.IsUsable("primary"))

	tr.RecordSuccess("primary")
	assert.Equal(t, 2, tr.Score("primary"))
	assert.True(t, tr.IsUsable("primary"))
}

func TestTrackerResetPolicy(t *testing.T) {
	tr := NewTracker(3, RecoverReset, testTiers()...)
	for i := 0; i < 5; i++ {
		tr.RecordFailure("secondary")
	}
	tr.RecordSuccess("secondary")
	assert.Equal(t, 0, tr.Score("secondary"))
	assert.True(t, tr.IsUsable("secondary"))
}

func TestTrackerScoreNeverNegative(t *testing.T) {
	tr := NewTracker(3, RecoverDecrement, testTiers()...)
	tr.RecordSuccess("primary")
	tr.RecordSuccess("primary")
	assert.Equal(t, 0, tr.Score("primary"))
}

func TestTrackerStaticAlwaysUsable(t *testing.T) {
	tr := NewTracker(1, RecoverDecrement, testTiers()...)
	for i := 0; i < 10; i++ {
		tr.RecordFailure("static")
	}
	assert.True(t, tr.IsUsable("static"))
	assert.Equal(t, 0, tr.Score("static"))
	assert.False(t, tr.Reset("static"))
}

func TestTrackerManualReset(t *testing.T) {
	tr := NewTracker(2, RecoverDecrement, testTiers()...)
	tr.RecordFailure("primary")
	tr.RecordFailure("primary")
	require.False(t, tr.IsUsable("primary"))

	assert.True(t, tr.Reset("primary"))
	assert.True(t, tr.IsUsable("primary"))
	assert.False(t, tr.Reset("unknown"))
}

func TestTrackerConcurrentUpdatesAreNotLost(t *testing.T) {
	tr := NewTracker(1000, RecoverDecrement, testTiers()...)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordFailure("primary")
			tr.RecordFailure("primary")
			tr.RecordSuccess("primary")
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, tr.Score("primary"))
}

func TestTrackerSnapshot(t *testing.T) {
	tr := NewTracker(2, RecoverDecrement, testTiers()...)
	tr.RecordFailure("secondary")
	tr.RecordFailure("secondary")

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "primary", snap[0].Name)
	assert.True(t, snap[0].Usable)
	assert.Nil(t, snap[0].LastFailureAt)
	assert.Equal(t, "secondary", snap[1].Name)
	assert.Equal(t, 2, snap[1].FailureScore)
	assert.False(t, snap[1].Usable)
	assert.NotNil(t, snap[1].LastFailureAt)
}

func TestParseRecoveryPolicy(t *testing.T) {
	p, err := ParseRecoveryPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RecoverDecrement, p)

	p, err = ParseRecoveryPolicy("reset")
	require.NoError(t, err)
	assert.Equal(t, RecoverReset, p)

	_, err = ParseRecoveryPolicy("halve")
	assert.Error(t, err)
}
