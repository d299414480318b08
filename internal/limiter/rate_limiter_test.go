package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_Clamps(t *testing.T) {
	assert.Equal(t, DefaultRPS, NewRateLimiter(0).MaxRPS())
	assert.Equal(t, 5, NewRateLimiter(5).MaxRPS())
	assert.Equal(t, MaxSafetyRPS, NewRateLimiter(1000).MaxRPS())
}

func TestSet_ReusesLimiterPerKey(t *testing.T) {
	s := NewSet(2)

	a := s.For("https://a")
	assert.Same(t, a, s.For("https://a"))
	assert.NotSame(t, a, s.For("https://b"))
}

func TestSet_WaitHonoursContext(t *testing.T) {
	s := NewSet(1)
	require.NoError(t, s.Wait(context.Background(), "k")) // 消耗 burst

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Wait(ctx, "k"))
}
