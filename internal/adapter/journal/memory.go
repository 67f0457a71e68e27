package journal

import (
	"context"
	"sync"

	"github.com/refractlabs/refract-core/internal/domain"
)

// DefaultMemoryLimit bounds the in-memory journal when no limit is given
const DefaultMemoryLimit = 4096

// Memory retains the most recent entries in memory. It backs tests and the
// journal read path when no SQL store is configured.
type Memory struct {
	mu      sync.Mutex
	limit   int
	entries []domain.Entry
}

// NewMemory creates a Memory journal retaining up to limit entries. A
// non-positive limit selects DefaultMemoryLimit.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{limit: limit}
}

// Record appends one entry, evicting the oldest past the retention limit
func (m *Memory) Record(_ context.Context, entry domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	if len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
	return nil
}

// Recent returns up to limit retained entries, newest first
func (m *Memory) Recent(_ context.Context, limit int) ([]domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}
