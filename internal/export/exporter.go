package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taptalk/commlog/internal/eventlog"
)

// EventLogger records the data_exported event.
type EventLogger interface {
	Log(eventType string, data map[string]any)
}

// Result describes a finished export.
type Result struct {
	Method   string
	Location string
	Records  int
	Bytes    int
}

// Exporter builds, encodes and delivers exports.
type Exporter struct {
	agg    *Aggregator
	events EventLogger
	log    *slog.Logger
}

// NewExporter creates an Exporter. events may be nil.
func NewExporter(agg *Aggregator, events EventLogger, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{agg: agg, events: events, log: logger}
}

// Export delivers the whole log to sink. On success a data_exported event is
// logged; on failure nothing is logged to the interaction log and the error
// wraps ErrExport.
func (e *Exporter) Export(ctx context.Context, sink Sink, format Format) (Result, error) {
	env, err := e.agg.Build(ctx)
	if err != nil {
		return Result{}, err
	}

	payload, err := Encode(env, format)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExport, err)
	}

	location, err := sink.Deliver(ctx, payload, format)
	if err != nil {
		return Result{}, fmt.Errorf("%w: deliver: %w", ErrExport, err)
	}

	res := Result{
		Method:   sink.Method(),
		Location: location,
		Records:  len(env.Logs),
		Bytes:    len(payload),
	}

	e.log.Info("export delivered",
		slog.String("method", res.Method),
		slog.String("location", res.Location),
		slog.Int("records", res.Records),
	)

	if e.events != nil {
		e.events.Log(eventlog.EventDataExported, map[string]any{
			"method":  res.Method,
			"records": res.Records,
		})
	}

	return res, nil
}
