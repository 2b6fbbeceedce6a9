// README: In-memory audit sink for tests and single-node setups.
package audit

import (
	"context"
	"sync"
	"time"
)

type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a snapshot of everything appended so far.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ByType filters the snapshot by event type.
func (m *MemorySink) ByType(eventType string) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
