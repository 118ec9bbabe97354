/*
Package search provides full-text lookup over the interaction log.

The index lives in memory and is rebuilt from the store on start and after a
clear; new records are added as they are logged. It only returns matching
record ids with enough context to show them. It does not aggregate.
*/
package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/taptalk/commlog/internal/storage"
)

// Index is an in-memory Bleve index of interactions.
type Index struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	log        *slog.Logger
}

// NewIndex creates an empty in-memory index.
func NewIndex(logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Index{bleveIndex: index, log: logger}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Exact-match fields used as filters.
	for _, field := range []string{"type", "user", "session"} {
		docMapping.AddFieldMappingsAt(field, bleve.NewKeywordFieldMapping())
	}

	for _, field := range []string{"view", "words", "text"} {
		docMapping.AddFieldMappingsAt(field, bleve.NewTextFieldMapping())
	}

	// Stored for display only.
	tsMapping := bleve.NewTextFieldMapping()
	tsMapping.Index = false
	tsMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("timestamp", tsMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

// Rebuild replaces the index contents with records. Pending records are
// skipped.
func (i *Index) Rebuild(records []storage.Interaction) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, rec := range records {
		if rec.Pending() {
			continue
		}
		if err := batch.Index(docID(rec.ID), toDoc(rec)); err != nil {
			i.log.Warn("failed to index record", slog.Int64("id", rec.ID), slog.Any("error", err))
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return fmt.Errorf("failed to batch index records: %w", err)
	}

	i.mu.Lock()
	old := i.bleveIndex
	i.bleveIndex = fresh
	i.mu.Unlock()

	return old.Close()
}

// Add indexes a single persisted record.
func (i *Index) Add(rec storage.Interaction) error {
	if rec.Pending() {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.bleveIndex.Index(docID(rec.ID), toDoc(rec)); err != nil {
		return fmt.Errorf("failed to index record %d: %w", rec.ID, err)
	}
	return nil
}

// Notify adds newly logged records, so the index can sit behind the logger's
// observer.
func (i *Index) Notify(rec storage.Interaction) {
	if err := i.Add(rec); err != nil {
		i.log.Warn("search index update failed", slog.Any("error", err))
	}
}

// Count returns the number of indexed records.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}

	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}

	return nil
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// toDoc builds the indexed form of a record.
func toDoc(rec storage.Interaction) map[string]interface{} {
	return map[string]interface{}{
		"type":      rec.Type,
		"user":      string(rec.User),
		"session":   rec.SessionID,
		"view":      rec.View,
		"words":     strings.Join(rec.Words, " "),
		"text":      flatten(rec.Data),
		"timestamp": rec.Timestamp,
	}
}

// flatten renders payload values as one searchable string, keys sorted.
func flatten(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := data[k].(type) {
		case nil:
		case string:
			parts = append(parts, v)
		case []any:
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
		case []string:
			parts = append(parts, v...)
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " ")
}
