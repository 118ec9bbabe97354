package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/taptalk/commlog/internal/attribution"
	"github.com/taptalk/commlog/internal/eventlog"
	"github.com/taptalk/commlog/internal/storage"
)

// ErrExport is returned when an export cannot be built or delivered.
var ErrExport = errors.New("export failed")

// Format selects the encoding of an export.
type Format string

const (
	// FormatJSON is the indented envelope document.
	FormatJSON Format = "json"
	// FormatJSONL is one log record per line, for grep and jq.
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJSONL:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or jsonl)", s)
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatJSONL {
		return ".jsonl"
	}
	return ".json"
}

// Aggregator builds export envelopes from the store.
type Aggregator struct {
	store storage.Reader
	clock eventlog.Clock
}

// NewAggregator creates an Aggregator. A nil clock selects the system clock.
func NewAggregator(store storage.Reader, clock eventlog.Clock) *Aggregator {
	if clock == nil {
		clock = eventlog.SystemClock
	}
	return &Aggregator{store: store, clock: clock}
}

// Build reads the whole store and returns the envelope. Store errors are
// returned as is and no partial envelope is produced.
func (a *Aggregator) Build(ctx context.Context) (*Envelope, error) {
	records, err := a.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read log: %w", ErrExport, err)
	}

	logs := make([]storage.Interaction, len(records))
	copy(logs, records)
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].ID < logs[j].ID })

	return &Envelope{
		Source:     Source,
		Version:    Version,
		ExportDate: storage.FormatTimestamp(a.clock.Now()),
		Metrics:    computeMetrics(logs),
		Logs:       logs,
	}, nil
}

func computeMetrics(logs []storage.Interaction) Metrics {
	m := Metrics{TotalEvents: len(logs)}
	for _, rec := range logs {
		switch rec.User {
		case attribution.UserStudent:
			m.StudentEvents++
		case attribution.UserPartner:
			m.PartnerModeEvents++
		}
	}
	return m
}

// Encode renders env in the given format.
func Encode(env *Envelope, format Format) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	switch format {
	case FormatJSON, "":
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(env); err != nil {
			return nil, fmt.Errorf("failed to encode envelope: %w", err)
		}
	case FormatJSONL:
		for _, rec := range env.Logs {
			if err := encoder.Encode(rec); err != nil {
				return nil, fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}

	return buf.Bytes(), nil
}
