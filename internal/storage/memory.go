package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage is a process-local Storage. Records are lost on exit.
// Used for ephemeral runs and tests.
type MemoryStorage struct {
	mu      sync.Mutex
	ready   bool
	lastID  int64
	records []Interaction
}

// NewMemory creates an unopened in-memory store.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{}
}

// Open marks the store ready. Idempotent.
func (m *MemoryStorage) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	return nil
}

// Ready reports whether Open has been called.
func (m *MemoryStorage) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Append stores a copy of rec under the next id.
func (m *MemoryStorage) Append(ctx context.Context, rec Interaction) (int64, error) {
	if err := rec.validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return 0, ErrNotReady
	}

	m.lastID++
	rec.ID = m.lastID
	m.records = append(m.records, cloneInteraction(rec))
	return rec.ID, nil
}

// GetAll returns copies of every record.
func (m *MemoryStorage) GetAll(ctx context.Context) ([]Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, ErrNotReady
	}

	out := make([]Interaction, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, cloneInteraction(rec))
	}
	return out, nil
}

// ClearAll drops every record but keeps the id counter.
func (m *MemoryStorage) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return ErrNotReady
	}
	m.records = nil
	return nil
}

// Summary returns the record count and oldest timestamp.
func (m *MemoryStorage) Summary(ctx context.Context) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return Summary{}, ErrNotReady
	}

	summary := Summary{Count: len(m.records)}
	for _, rec := range m.records {
		if summary.Oldest == "" || rec.Timestamp < summary.Oldest {
			summary.Oldest = rec.Timestamp
		}
	}
	return summary, nil
}

// Close is a no-op; the records stay readable until the process exits.
func (m *MemoryStorage) Close() error {
	return nil
}

// cloneInteraction copies the slice and top-level map so callers cannot
// mutate stored records.
func cloneInteraction(rec Interaction) Interaction {
	if rec.Data != nil {
		data := make(map[string]any, len(rec.Data))
		for k, v := range rec.Data {
			data[k] = v
		}
		rec.Data = data
	}
	if rec.Words != nil {
		rec.Words = append([]string(nil), rec.Words...)
	}
	return rec
}
