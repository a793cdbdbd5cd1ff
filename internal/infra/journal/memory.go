package journal

import (
	"context"
	"sync"

	"github.com/yanqian/cityweather/internal/domain/weather"
)

const defaultCapacity = 200

// MemoryJournal keeps the most recent failures in a fixed-size ring.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []weather.FailureRecord
	next    int
	full    bool
}

// NewMemoryJournal constructs a journal holding at most capacity records.
func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryJournal{entries: make([]weather.FailureRecord, capacity)}
}

// RecordFailure implements weather.FailureJournal.
func (j *MemoryJournal) RecordFailure(_ context.Context, record weather.FailureRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[j.next] = record
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// RecentFailures returns up to limit records, newest first.
func (j *MemoryJournal) RecentFailures(_ context.Context, limit int) ([]weather.FailureRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size := j.next
	if j.full {
		size = len(j.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]weather.FailureRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + len(j.entries)) % len(j.entries)
		out = append(out, j.entries[idx])
	}
	return out, nil
}

var _ weather.FailureJournal = (*MemoryJournal)(nil)
