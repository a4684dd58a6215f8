package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBlocksAfterMax(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(2, time.Minute)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestMemoryLimiterNewWindowResets(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(1, time.Minute)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	res, _ := l.Allow(ctx, "k")
	require.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "k")
	require.False(t, res.Allowed)

	l.now = func() time.Time { return base.Add(time.Minute) }
	res, _ = l.Allow(ctx, "k")
	require.True(t, res.Allowed)
}

func TestDecide(t *testing.T) {
	res := decide(5, 3, 0, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)
	assert.Equal(t, int64(5), res.CurrentHits)

	// primer hit: la key todavía no tiene TTL (-1) hasta el EXPIRE
	first := decide(1, 3, -1, time.Minute)
	assert.True(t, first.Allowed)
	assert.Equal(t, time.Minute, first.WindowTTL)
	assert.Equal(t, int64(2), first.Remaining)
}
