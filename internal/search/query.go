package search

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit caps results when Options.Limit is unset.
const DefaultLimit = 20

// Options narrows a search.
type Options struct {
	Limit int
	// User restricts hits to "student" or "partner" records.
	User string
	// Type restricts hits to one event type.
	Type string
}

// Hit is one matching record.
type Hit struct {
	ID        int64   `json:"id"`
	Type      string  `json:"type"`
	User      string  `json:"user"`
	Timestamp string  `json:"timestamp"`
	Score     float64 `json:"score"`
}

// Search runs a keyword match over the index. An empty text matches every
// record, so filters alone can be used to list records.
func (i *Index) Search(text string, opts Options) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	var q query.Query
	if text == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewMatchQuery(text)
	}

	filters := []query.Query{q}
	if opts.User != "" {
		tq := bleve.NewTermQuery(opts.User)
		tq.SetField("user")
		filters = append(filters, tq)
	}
	if opts.Type != "" {
		tq := bleve.NewTermQuery(opts.Type)
		tq.SetField("type")
		filters = append(filters, tq)
	}
	if len(filters) > 1 {
		q = bleve.NewConjunctionQuery(filters...)
	}

	req := bleve.NewSearchRequestOptions(q, opts.Limit, 0, false)
	req.Fields = []string{"type", "user", "timestamp"}

	results, err := i.bleveIndex.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(results), nil
}

// convertBleveResults converts Bleve hits to Hit values.
func convertBleveResults(results *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(results.Hits))

	for _, h := range results.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		eventType, _ := h.Fields["type"].(string)
		user, _ := h.Fields["user"].(string)
		timestamp, _ := h.Fields["timestamp"].(string)

		hits = append(hits, Hit{
			ID:        id,
			Type:      eventType,
			User:      user,
			Timestamp: timestamp,
			Score:     h.Score,
		})
	}

	return hits
}
