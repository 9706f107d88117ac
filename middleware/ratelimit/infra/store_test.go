package infra

import (
	"testing"
	"time"

	"memoright-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
)

func TestLocalStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewLocalStore(10, time.Minute)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	assert.Same(t, l1, l2)
}

func TestLocalStore_BurstEqualsMaxRequests(t *testing.T) {
	s := NewLocalStore(3, time.Hour)
	assert.Equal(t, 3, s.Burst())

	lim := s.Get(domain.Key("k"))
	for i := 0; i < 3; i++ {
		assert.True(t, lim.Allow(), "request %d", i+1)
	}
	assert.False(t, lim.Allow(), "4th immediate request must be rejected")
}

func TestLocalStore_RateIsMaxOverWindow(t *testing.T) {
	s := NewLocalStore(60, time.Minute)
	assert.InDelta(t, 1.0, s.RPS(), 1e-9)
}

func TestLocalStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewLocalStore(10, time.Second, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()
	assert.Equal(t, 0, s.Len())

	after := s.Get(domain.Key("k"))
	assert.NotSame(t, before, after, "expected limiter to be recreated after cleanup")
}
