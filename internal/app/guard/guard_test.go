package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, 100)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "keys are independent")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))
}

func TestBanTracker(t *testing.T) {
	b := NewBanTracker(BanConfig{MaxFailures: 3, FailureWindow: time.Minute, BanDuration: time.Minute})

	assert.False(t, b.IsBanned("ip"))
	assert.False(t, b.RecordFailure("ip"))
	assert.False(t, b.RecordFailure("ip"))
	assert.True(t, b.RecordFailure("ip"))
	assert.True(t, b.IsBanned("ip"))
	assert.False(t, b.IsBanned("other"))
}

func TestBanTracker_ResetClearsFailures(t *testing.T) {
	b := NewBanTracker(BanConfig{MaxFailures: 2, FailureWindow: time.Minute, BanDuration: time.Minute})
	assert.False(t, b.RecordFailure("ip"))
	b.Reset("ip")
	assert.False(t, b.RecordFailure("ip"))
	assert.False(t, b.IsBanned("ip"))
}

func TestBanTracker_Defaults(t *testing.T) {
	b := NewBanTracker(BanConfig{})
	assert.Equal(t, 10, b.cfg.MaxFailures)
	assert.Equal(t, time.Hour, b.cfg.BanDuration)
}
