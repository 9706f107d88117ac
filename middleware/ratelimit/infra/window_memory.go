package infra

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryWindowStore é uma implementação em memória da janela deslizante.
// Útil para testes e desenvolvimento com uma única instância.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*memWindow
	now     func() time.Time
}

type memWindow struct {
	entries   []memEntry // ordenado por at
	expiresAt time.Time
}

type memEntry struct {
	at     time.Time
	member string
}

type MemoryWindowOption func(*MemoryWindowStore)

// WithWindowClock troca o relógio usado para expirar chaves.
func WithWindowClock(now func() time.Time) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.now = now }
}

func NewMemoryWindowStore(opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows: make(map[string]*memWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// get deve ser chamado com mu travado.
func (s *MemoryWindowStore) get(key string) *memWindow {
	w, ok := s.windows[key]
	if !ok {
		return nil
	}
	if !w.expiresAt.IsZero() && !s.now().Before(w.expiresAt) {
		delete(s.windows, key)
		return nil
	}
	return w
}

func (s *MemoryWindowStore) Prune(_ context.Context, key string, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.get(key)
	if w == nil {
		return nil
	}
	i := sort.Search(len(w.entries), func(i int) bool { return w.entries[i].at.After(before) })
	w.entries = w.entries[i:]
	return nil
}

func (s *MemoryWindowStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.get(key)
	if w == nil {
		return 0, nil
	}
	return len(w.entries), nil
}

func (s *MemoryWindowStore) Add(_ context.Context, key string, at time.Time, member string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.get(key)
	if w == nil {
		w = &memWindow{}
		s.windows[key] = w
	}
	i := sort.Search(len(w.entries), func(i int) bool { return w.entries[i].at.After(at) })
	w.entries = append(w.entries, memEntry{})
	copy(w.entries[i+1:], w.entries[i:])
	w.entries[i] = memEntry{at: at, member: member}
	if ttl > 0 {
		w.expiresAt = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryWindowStore) Oldest(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.get(key)
	if w == nil || len(w.entries) == 0 {
		return time.Time{}, false, nil
	}
	return w.entries[0].at, true, nil
}

func (s *MemoryWindowStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}
