package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twdataset/pkg/config"
)

func TestWindowLimiterBurst(t *testing.T) {
	limiter := NewWindowLimiter(4, time.Hour, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow() {
		t.Error("Request beyond the burst should be denied")
	}
}

func TestWindowLimiterInterval(t *testing.T) {
	limiter := NewWindowLimiter(450, 15*time.Minute, 10)
	assert.Equal(t, 2*time.Second, limiter.Interval())
}

func TestWindowLimiterWaitHonoursContext(t *testing.T) {
	limiter := NewWindowLimiter(1, time.Hour, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.Error(t, err)
}

func TestWindowLimiterWaitProceeds(t *testing.T) {
	limiter := NewWindowLimiter(1000, time.Second, 1)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestFromConfig(t *testing.T) {
	_, ok := FromConfig(config.RateLimitConfig{}).(unlimited)
	assert.True(t, ok, "zero config should disable pacing")

	l := FromConfig(config.RateLimitConfig{RequestsPerWindow: 300, Window: 15 * time.Minute, BurstSize: 5})
	wl, ok := l.(*WindowLimiter)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, wl.Interval())
}

func TestUnlimited(t *testing.T) {
	l := Unlimited()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
