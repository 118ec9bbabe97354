/*
Package rpc implements the stdio bridge between the board UI host and the
interaction log.

The bridge speaks newline-delimited JSON-RPC 2.0 on stdin/stdout:
  - initialize: handshake, returns server info and the session id
  - log: record an interaction (fire-and-forget)
  - getAll: every persisted record
  - clearAll: delete every record, requires {"confirm":"DELETE"}
  - export: build and deliver an export
  - getSessionId, summary, search, preview
  - partnerMode.get, partnerMode.toggle
  - settings.saveVocabulary

Requests without an id are notifications and get no reply.
*/
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/taptalk/commlog/internal/export"
	"github.com/taptalk/commlog/internal/observer"
	"github.com/taptalk/commlog/internal/search"
	"github.com/taptalk/commlog/internal/storage"
	"github.com/taptalk/commlog/internal/version"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

// maxLineSize bounds a single request line.
const maxLineSize = 4 * 1024 * 1024

// Service is the part of the app the bridge exposes.
type Service interface {
	Log(eventType string, data map[string]any)
	GetAll(ctx context.Context) ([]storage.Interaction, error)
	ClearAll(ctx context.Context) error
	BuildExportPayload(ctx context.Context) (*export.Envelope, error)
	Export(ctx context.Context, sink export.Sink, format export.Format) (export.Result, error)
	FileSink() (export.FileSink, error)
	SessionID() string
	PartnerMode() bool
	TogglePartnerMode() bool
	Summary(ctx context.Context) (storage.Summary, error)
	Search(ctx context.Context, text string, opts search.Options) ([]search.Hit, error)
	Preview() *observer.Preview
	SaveVocabulary(words []string) error
}

// ClearConfirmer validates the typed clear confirmation.
type ClearConfirmer func(typed string) error

// Server is the stdio bridge.
type Server struct {
	svc     Service
	confirm ClearConfirmer
	log     *slog.Logger

	out   io.Writer
	outMu sync.Mutex
}

// NewServer creates a bridge writing replies to out.
func NewServer(svc Service, confirm ClearConfirmer, out io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, confirm: confirm, out: out, log: logger}
}

// Request is an incoming JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Run serves requests from in until it is closed or ctx is done.
func (s *Server) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleRequest(ctx, line)
		if resp != nil {
			s.sendResponse(resp)
		}
	}

	return scanner.Err()
}

// handleRequest processes one request line. It returns nil for notifications.
func (s *Server) handleRequest(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(nil, CodeParseError, fmt.Sprintf("invalid JSON-RPC request: %v", err))
	}

	result, rpcErr := s.dispatch(ctx, &req)

	if req.ID == nil {
		if rpcErr != nil {
			s.log.Warn("notification failed", slog.String("method", req.Method), slog.String("error", rpcErr.Message))
		}
		return nil
	}
	if rpcErr != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize()
	case "log":
		return s.handleLog(req)
	case "getAll":
		return s.handleGetAll(ctx)
	case "clearAll":
		return s.handleClearAll(ctx, req)
	case "export":
		return s.handleExport(ctx, req)
	case "getSessionId":
		return map[string]interface{}{"sessionId": s.svc.SessionID()}, nil
	case "partnerMode.get":
		return map[string]interface{}{"active": s.svc.PartnerMode()}, nil
	case "partnerMode.toggle":
		return map[string]interface{}{"active": s.svc.TogglePartnerMode()}, nil
	case "summary":
		return s.handleSummary(ctx)
	case "search":
		return s.handleSearch(ctx, req)
	case "preview":
		return s.handlePreview()
	case "settings.saveVocabulary":
		return s.handleSaveVocabulary(req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found"}
	}
}

// handleInitialize handles the handshake request.
func (s *Server) handleInitialize() (interface{}, *Error) {
	return map[string]interface{}{
		"protocolVersion": "1.0",
		"serverInfo": map[string]interface{}{
			"name":    "taptalk",
			"version": version.Version,
		},
		"sessionId": s.svc.SessionID(),
	}, nil
}

// handleLog queues an interaction and replies at once.
func (s *Server) handleLog(req *Request) (interface{}, *Error) {
	var params struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if params.Type == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "missing 'type'"}
	}

	s.svc.Log(params.Type, params.Data)
	return map[string]interface{}{"queued": true}, nil
}

func (s *Server) handleGetAll(ctx context.Context) (interface{}, *Error) {
	records, err := s.svc.GetAll(ctx)
	if err != nil {
		return nil, serverError(err)
	}
	return records, nil
}

func (s *Server) handleClearAll(ctx context.Context, req *Request) (interface{}, *Error) {
	var params struct {
		Confirm string `json:"confirm"`
	}
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if err := s.confirm(params.Confirm); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}

	if err := s.svc.ClearAll(ctx); err != nil {
		return nil, serverError(err)
	}
	return map[string]interface{}{"cleared": true}, nil
}

// handleExport delivers an export. "file" writes to the export directory;
// "inline" returns the payload in the reply for the host to share.
func (s *Server) handleExport(ctx context.Context, req *Request) (interface{}, *Error) {
	var params struct {
		Format      string `json:"format"`
		Destination string `json:"destination"`
	}
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}

	format, err := export.ParseFormat(params.Format)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}

	switch params.Destination {
	case "", "inline":
		var buf bytes.Buffer
		res, err := s.svc.Export(ctx, export.WriterSink{W: &buf}, format)
		if err != nil {
			return nil, serverError(err)
		}
		return map[string]interface{}{
			"method":  res.Method,
			"records": res.Records,
			"payload": buf.String(),
		}, nil

	case "file":
		sink, err := s.svc.FileSink()
		if err != nil {
			return nil, serverError(err)
		}
		res, err := s.svc.Export(ctx, sink, format)
		if err != nil {
			return nil, serverError(err)
		}
		return map[string]interface{}{
			"method":   res.Method,
			"records":  res.Records,
			"location": res.Location,
		}, nil

	case "preview":
		env, err := s.svc.BuildExportPayload(ctx)
		if err != nil {
			return nil, serverError(err)
		}
		return env, nil
	}

	return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown destination %q", params.Destination)}
}

func (s *Server) handleSummary(ctx context.Context) (interface{}, *Error) {
	summary, err := s.svc.Summary(ctx)
	if err != nil {
		return nil, serverError(err)
	}
	return summary, nil
}

func (s *Server) handleSearch(ctx context.Context, req *Request) (interface{}, *Error) {
	var params struct {
		Query string `json:"query"`
		User  string `json:"user"`
		Type  string `json:"type"`
		Limit int    `json:"limit"`
	}
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}

	hits, err := s.svc.Search(ctx, params.Query, search.Options{
		Limit: params.Limit,
		User:  params.User,
		Type:  params.Type,
	})
	if err != nil {
		return nil, serverError(err)
	}
	return hits, nil
}

func (s *Server) handlePreview() (interface{}, *Error) {
	p := s.svc.Preview()
	return map[string]interface{}{
		"count":   p.Count(),
		"entries": p.Entries(),
	}, nil
}

func (s *Server) handleSaveVocabulary(req *Request) (interface{}, *Error) {
	var params struct {
		Words []string `json:"words"`
	}
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if err := s.svc.SaveVocabulary(params.Words); err != nil {
		return nil, serverError(err)
	}
	return map[string]interface{}{"activeVocabulary": params.Words}, nil
}

// sendResponse writes one reply line.
func (s *Server) sendResponse(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to encode response", slog.Any("error", err))
		data, _ = json.Marshal(errorResponse(resp.ID, CodeServerError, "failed to encode response"))
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out.Write(append(data, '\n'))
}

func decodeParams(raw json.RawMessage, v interface{}) *Error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func errorResponse(id interface{}, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

func serverError(err error) *Error {
	return &Error{Code: CodeServerError, Message: err.Error()}
}
