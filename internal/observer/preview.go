package observer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/taptalk/commlog/internal/storage"
)

// DefaultPreviewSize bounds the preview panel.
const DefaultPreviewSize = 200

// Preview is the developer panel: the most recent records, newest first,
// and a running count of records seen.
type Preview struct {
	mu      sync.Mutex
	size    int
	count   int
	entries []storage.Interaction
}

// NewPreview creates a panel holding at most size entries.
func NewPreview(size int) *Preview {
	if size <= 0 {
		size = DefaultPreviewSize
	}
	return &Preview{size: size}
}

// Notify prepends rec.
func (p *Preview) Notify(rec storage.Interaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++
	p.entries = append([]storage.Interaction{rec}, p.entries...)
	if len(p.entries) > p.size {
		p.entries = p.entries[:p.size]
	}
}

// Entries returns the panel contents, newest first.
func (p *Preview) Entries() []storage.Interaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]storage.Interaction{}, p.entries...)
}

// Count returns how many records the panel has seen since the last
// Clear or Reload.
func (p *Preview) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Clear empties the panel. The store is not touched.
func (p *Preview) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count = 0
	p.entries = nil
}

// Reload replaces the panel with the store's contents. Pending records that
// were only ever shown here disappear.
func (p *Preview) Reload(ctx context.Context, store storage.Reader) error {
	records, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload preview: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })

	p.mu.Lock()
	defer p.mu.Unlock()

	p.count = len(records)
	if len(records) > p.size {
		records = records[:p.size]
	}
	p.entries = records
	return nil
}

// Line renders rec the way the panel shows it: "[id] type {data}".
func Line(rec storage.Interaction) string {
	id := "pending"
	if !rec.Pending() {
		id = fmt.Sprintf("%d", rec.ID)
	}
	return fmt.Sprintf("%s [%s] %s %s %v", rec.Timestamp, id, rec.Type, rec.User, rec.Data)
}
