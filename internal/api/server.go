/*
Package api exposes the interaction log over HTTP for the caregiver
dashboard and research tooling.

ROUTES (all under /api):
  - POST   /events          queue an interaction
  - GET    /events          every persisted record
  - DELETE /events          clear the log, requires "X-Confirm: DELETE"
  - GET    /events/stream   newly logged records as server-sent events
  - GET    /export          export envelope (?format=json|jsonl)
  - GET    /summary         record count and oldest timestamp
  - GET    /session         current session id
  - GET    /partner-mode    partner mode state
  - POST   /partner-mode    toggle partner mode
  - GET    /search          ?q=&user=&type=&limit=
  - GET    /preview         live preview panel

The server binds to localhost unless told otherwise.
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAddr is where the API listens when no address is given.
const DefaultAddr = "127.0.0.1:8787"

// NewRouter creates the chi router with all routes.
func NewRouter(h *Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Confirm"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.LogEvent)
			r.Get("/", h.ListEvents)
			r.Delete("/", h.ClearEvents)
			r.Get("/stream", h.StreamEvents)
		})

		r.Get("/export", h.Export)
		r.Get("/summary", h.Summary)
		r.Get("/session", h.Session)

		r.Get("/partner-mode", h.GetPartnerMode)
		r.Post("/partner-mode", h.TogglePartnerMode)

		r.Get("/search", h.Search)
		r.Get("/preview", h.Preview)
	})

	return r
}

// Server runs the HTTP API.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer creates a server for h on addr. An empty addr uses DefaultAddr.
func NewServer(addr string, h *Handler, logger *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start listens and serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("http api listening", slog.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
