package infra

import (
	"context"
	"sync"
	"time"

	"memoright-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// LocalStore é um token bucket (x/time/rate) por chave, mantido em memória do
// processo. O gateway o usa como fallback quando o Redis está indisponível e a
// política é FailLocal: a cota max/janela vira rate = max/janela e burst = max.
type LocalStore struct {
	mu           sync.Mutex
	entries      map[string]*localEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LocalStoreOption func(*LocalStore)

func WithIdleTTL(d time.Duration) LocalStoreOption {
	return func(s *LocalStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LocalStoreOption {
	return func(s *LocalStore) { s.cleanupEvery = d }
}

// NewLocalStore aproxima "max requisições por janela" com um token bucket.
func NewLocalStore(max int, window time.Duration, opts ...LocalStoreOption) *LocalStore {
	rps := rate.Inf
	if window > 0 {
		rps = rate.Limit(float64(max) / window.Seconds())
	}
	s := &LocalStore{
		entries:      make(map[string]*localEntry),
		rps:          rps,
		burst:        max,
		idleTTL:      2 * window,
		cleanupEvery: 2 * time.Minute,
	}
	if s.idleTTL < time.Minute {
		s.idleTTL = time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalStore) RPS() float64 { return float64(s.rps) }
func (s *LocalStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *LocalStore) Get(key domain.Key) domain.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[string(key)]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[string(key)] = &localEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *LocalStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *LocalStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
