package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/cityweather/internal/domain/weather"
)

type counter struct {
	value     uint64
	expiresAt time.Time
}

// MemoryStore keeps generation counters in process memory for single-replica deployments.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]counter),
		now:      time.Now,
	}
}

// Next implements weather.SequenceStore.
func (s *MemoryStore) Next(_ context.Context, session, slot string, ttl time.Duration) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.cleanupLocked(now)
	k := key(session, slot)
	c := s.counters[k]
	c.value++
	c.expiresAt = time.Time{}
	if ttl > 0 {
		c.expiresAt = now.Add(ttl)
	}
	s.counters[k] = c
	return c.value, nil
}

// Current implements weather.SequenceStore.
func (s *MemoryStore) Current(_ context.Context, session, slot string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key(session, slot)]
	if !ok || hasExpired(c.expiresAt, s.now()) {
		return 0, nil
	}
	return c.value, nil
}

func (s *MemoryStore) cleanupLocked(now time.Time) {
	for k, c := range s.counters {
		if hasExpired(c.expiresAt, now) {
			delete(s.counters, k)
		}
	}
}

func hasExpired(ts, now time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(now)
}

func key(session, slot string) string {
	return session + ":" + slot
}

var _ weather.SequenceStore = (*MemoryStore)(nil)
