package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/taptalk/commlog/internal/eventlog"
	"github.com/taptalk/commlog/internal/export"
	"github.com/taptalk/commlog/internal/observer"
	"github.com/taptalk/commlog/internal/search"
	"github.com/taptalk/commlog/internal/storage"
)

// ConfirmHeader carries the typed clear confirmation.
const ConfirmHeader = "X-Confirm"

// streamBuffer is the per-subscriber backlog for /events/stream.
const streamBuffer = 64

// Service is the part of the app the API exposes.
type Service interface {
	Log(eventType string, data map[string]any)
	GetAll(ctx context.Context) ([]storage.Interaction, error)
	ClearAll(ctx context.Context) error
	Export(ctx context.Context, sink export.Sink, format export.Format) (export.Result, error)
	SessionID() string
	PartnerMode() bool
	TogglePartnerMode() bool
	Summary(ctx context.Context) (storage.Summary, error)
	Ready() bool
	Search(ctx context.Context, text string, opts search.Options) ([]search.Hit, error)
	Preview() *observer.Preview
	Subscribe(buffer int) (<-chan storage.Interaction, func())
}

// Handler holds the HTTP handlers.
type Handler struct {
	svc     Service
	confirm func(typed string) error
	clock   eventlog.Clock
	log     *slog.Logger
}

// NewHandler creates handlers for svc. confirm validates X-Confirm on clears.
func NewHandler(svc Service, confirm func(typed string) error, clock eventlog.Clock, logger *slog.Logger) *Handler {
	if clock == nil {
		clock = eventlog.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, confirm: confirm, clock: clock, log: logger}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// LogEventRequest is the body of POST /api/events.
type LogEventRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// LogEvent queues an interaction. The reply does not wait for persistence.
func (h *Handler) LogEvent(w http.ResponseWriter, r *http.Request) {
	var req LogEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required", nil)
		return
	}

	h.svc.Log(req.Type, req.Data)
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

// ListEvents returns every persisted record in id order.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.GetAll(r.Context())
	if err != nil {
		writeStoreError(w, "failed to read interaction log", err)
		return
	}
	if records == nil {
		records = []storage.Interaction{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ClearEvents deletes every record once confirmed.
func (h *Handler) ClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.confirm(r.Header.Get(ConfirmHeader)); err != nil {
		writeError(w, http.StatusPreconditionRequired, "clear not confirmed", err)
		return
	}
	if err := h.svc.ClearAll(r.Context()); err != nil {
		writeStoreError(w, "failed to clear interaction log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// StreamEvents sends each newly logged record as a server-sent event.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	ch, cancel := h.svc.Subscribe(streamBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				h.log.Warn("failed to encode streamed record", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "event: interaction\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// Export sends the export envelope as a file download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid format", err)
		return
	}

	sink := &downloadSink{w: w, filename: export.Filename(h.clock.Now().UnixMilli(), format)}
	if _, err := h.svc.Export(r.Context(), sink, format); err != nil {
		if sink.written {
			h.log.Warn("export failed after response started", slog.Any("error", err))
			return
		}
		writeStoreError(w, "failed to export interaction log", err)
	}
}

// Summary returns the record count and oldest timestamp.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context())
	if err != nil {
		writeStoreError(w, "failed to summarize interaction log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  summary.Count,
		"oldest": summary.Oldest,
		"ready":  h.svc.Ready(),
	})
}

// Session returns the current session id.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": h.svc.SessionID()})
}

// GetPartnerMode reports whether partner mode is on.
func (h *Handler) GetPartnerMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"active": h.svc.PartnerMode()})
}

// TogglePartnerMode flips partner mode.
func (h *Handler) TogglePartnerMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"active": h.svc.TogglePartnerMode()})
}

// Search queries the in-memory index.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := search.Options{User: q.Get("user"), Type: q.Get("type")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		opts.Limit = limit
	}

	hits, err := h.svc.Search(r.Context(), q.Get("q"), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed", err)
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

// Preview returns the live preview panel, newest first.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	p := h.svc.Preview()
	entries := p.Entries()
	lines := make([]string, len(entries))
	for i, rec := range entries {
		lines[i] = observer.Line(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   p.Count(),
		"entries": entries,
		"lines":   lines,
	})
}

// downloadSink writes an export straight into the HTTP response.
type downloadSink struct {
	w        http.ResponseWriter
	filename string
	written  bool
}

func (s *downloadSink) Method() string {
	return export.MethodDownload
}

func (s *downloadSink) Deliver(ctx context.Context, payload []byte, format export.Format) (string, error) {
	contentType := "application/json"
	if format == export.FormatJSONL {
		contentType = "application/x-ndjson"
	}
	s.w.Header().Set("Content-Type", contentType)
	s.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
	s.w.WriteHeader(http.StatusOK)
	s.written = true

	if _, err := s.w.Write(payload); err != nil {
		return "", err
	}
	return s.filename, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps an unavailable store to 503.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrNotReady) {
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, message, err)
}
