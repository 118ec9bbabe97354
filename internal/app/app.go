/*
Package app wires the interaction log together for one process run.

An App owns the session, attribution mode, store, logger, observers, search
index and exporter. Every outer surface (stdio bridge, HTTP API, CLI
commands, scheduler) talks to the log through an App.
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taptalk/commlog/internal/attribution"
	"github.com/taptalk/commlog/internal/config"
	"github.com/taptalk/commlog/internal/eventlog"
	"github.com/taptalk/commlog/internal/export"
	"github.com/taptalk/commlog/internal/observer"
	"github.com/taptalk/commlog/internal/search"
	"github.com/taptalk/commlog/internal/session"
	"github.com/taptalk/commlog/internal/storage"
	"github.com/taptalk/commlog/internal/version"
)

// ClearConfirmation must be typed to clear the log.
const ClearConfirmation = "DELETE"

// ErrNotConfirmed is returned when a clear is requested without confirmation.
var ErrNotConfirmed = errors.New(`clearing the log requires typing "DELETE"`)

// ConfirmClear checks the confirmation typed by the caregiver.
func ConfirmClear(typed string) error {
	if typed != ClearConfirmation {
		return ErrNotConfirmed
	}
	return nil
}

// Options customizes New. Zero values select the defaults.
type Options struct {
	// Store replaces the SQLite store, e.g. with storage.NewMemory().
	Store storage.Storage
	// ConfigPath is where SaveVocabulary writes. Empty disables saving.
	ConfigPath string
	Clock      eventlog.Clock
	Logger     *slog.Logger
	AppVersion string
	UserAgent  string
	// Session overrides the generated session context.
	Session *session.Context
	// Passive skips session_start, for commands that only read the log.
	Passive bool
}

// App is one running instance of the interaction log.
type App struct {
	cfg  *config.Config
	opts Options
	log  *slog.Logger

	session  session.Context
	mode     *attribution.Mode
	store    storage.Storage
	logger   *eventlog.Logger
	preview  *observer.Preview
	stream   *observer.Stream
	index    *search.Index
	agg      *export.Aggregator
	exporter *export.Exporter
}

// New builds an App from cfg. Nothing touches the disk until Start.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	cfg.ApplyDefaults()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = eventlog.SystemClock
	}
	if opts.AppVersion == "" {
		opts.AppVersion = version.Version
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent(opts.AppVersion)
	}

	store := opts.Store
	if store == nil {
		dbPath, err := cfg.ResolvedDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		store = storage.NewStorage(dbPath, opts.Logger)
	}

	index, err := search.NewIndex(opts.Logger)
	if err != nil {
		return nil, err
	}

	sess := session.New()
	if opts.Session != nil {
		sess = *opts.Session
	}

	a := &App{
		cfg:     cfg,
		opts:    opts,
		log:     opts.Logger,
		session: sess,
		mode:    attribution.NewMode(),
		store:   store,
		preview: observer.NewPreview(cfg.Settings.PreviewSize),
		stream:  observer.NewStream(),
		index:   index,
	}

	a.logger = eventlog.New(store, sess, a.mode, eventlog.Options{
		QueueSize: cfg.Settings.QueueSize,
		Clock:     opts.Clock,
		Logger:    opts.Logger,
		Observer: observer.Fanout{
			a.preview,
			a.stream,
			a.index,
			observer.SlogObserver{Logger: opts.Logger},
		},
	})
	a.mode.Bind(a.logger)

	a.agg = export.NewAggregator(store, opts.Clock)
	a.exporter = export.NewExporter(a.agg, a.logger, opts.Logger)

	return a, nil
}

// Start opens the store and logs session_start. A store that fails to open
// leaves the app running in degraded mode: events are shown but not kept.
func (a *App) Start(ctx context.Context) error {
	if err := a.store.Open(ctx); err != nil {
		a.log.Warn("interaction log unavailable, running without persistence", slog.Any("error", err))
	} else if err := a.reload(ctx); err != nil {
		a.log.Warn("failed to load existing records", slog.Any("error", err))
	}

	if !a.opts.Passive {
		a.logger.LogSessionStart(a.opts.AppVersion, a.opts.UserAgent)
	}
	return nil
}

// reload rebuilds the search index and preview from the store.
func (a *App) reload(ctx context.Context) error {
	records, err := a.store.GetAll(ctx)
	if err != nil {
		return err
	}
	if err := a.index.Rebuild(records); err != nil {
		return err
	}
	return a.preview.Reload(ctx, a.store)
}

// Close drains queued events and closes the store.
func (a *App) Close() error {
	a.logger.Close()
	if err := a.index.Close(); err != nil {
		a.log.Warn("failed to close search index", slog.Any("error", err))
	}
	return a.store.Close()
}

// Log records an interaction without blocking.
func (a *App) Log(eventType string, data map[string]any) {
	a.logger.Log(eventType, data)
}

// Flush waits until previously logged events have been handled.
func (a *App) Flush(ctx context.Context) error {
	return a.logger.Flush(ctx)
}

// GetAll returns every persisted record.
func (a *App) GetAll(ctx context.Context) ([]storage.Interaction, error) {
	return a.store.GetAll(ctx)
}

// ClearAll deletes every record, then logs database_cleared.
func (a *App) ClearAll(ctx context.Context) error {
	// Events logged before the clear belong to the old log.
	if err := a.logger.Flush(ctx); err != nil {
		return err
	}
	if err := a.store.ClearAll(ctx); err != nil {
		return err
	}

	if err := a.index.Rebuild(nil); err != nil {
		a.log.Warn("failed to reset search index", slog.Any("error", err))
	}
	a.preview.Clear()

	a.logger.Log(eventlog.EventDatabaseCleared, map[string]any{})
	return nil
}

// BuildExportPayload returns the export envelope for the current store.
func (a *App) BuildExportPayload(ctx context.Context) (*export.Envelope, error) {
	if err := a.logger.Flush(ctx); err != nil {
		return nil, err
	}
	return a.agg.Build(ctx)
}

// Export delivers the log to sink and logs data_exported.
func (a *App) Export(ctx context.Context, sink export.Sink, format export.Format) (export.Result, error) {
	if err := a.logger.Flush(ctx); err != nil {
		return export.Result{}, err
	}
	return a.exporter.Export(ctx, sink, format)
}

// SessionID returns this run's session id.
func (a *App) SessionID() string {
	return a.session.ID()
}

// PartnerMode reports whether partner mode is on.
func (a *App) PartnerMode() bool {
	return a.mode.IsActive()
}

// TogglePartnerMode flips partner mode and returns the new state.
func (a *App) TogglePartnerMode() bool {
	return a.mode.Toggle()
}

// Summary returns the record count and oldest timestamp.
func (a *App) Summary(ctx context.Context) (storage.Summary, error) {
	return a.store.Summary(ctx)
}

// Ready reports whether records are being persisted.
func (a *App) Ready() bool {
	return a.store.Ready()
}

// Search looks up records in the in-memory index.
func (a *App) Search(ctx context.Context, text string, opts search.Options) ([]search.Hit, error) {
	if err := a.logger.Flush(ctx); err != nil {
		return nil, err
	}
	return a.index.Search(text, opts)
}

// Preview returns the live preview panel.
func (a *App) Preview() *observer.Preview {
	return a.preview
}

// RefreshPreview rebuilds the preview panel from the store.
func (a *App) RefreshPreview(ctx context.Context) error {
	return a.preview.Reload(ctx, a.store)
}

// Subscribe streams newly logged records until cancel is called.
func (a *App) Subscribe(buffer int) (<-chan storage.Interaction, func()) {
	return a.stream.Subscribe(buffer)
}

// Config returns the configuration the app runs with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// ExportDir returns the directory file exports go to.
func (a *App) ExportDir() (string, error) {
	return a.cfg.ResolvedExportDir()
}

// FileSink returns a sink writing to the configured export directory.
func (a *App) FileSink() (export.FileSink, error) {
	dir, err := a.ExportDir()
	if err != nil {
		return export.FileSink{}, err
	}
	return export.FileSink{Dir: dir, Clock: a.opts.Clock}, nil
}

// Dropped returns how many events were lost to a full queue.
func (a *App) Dropped() int64 {
	return a.logger.Dropped()
}
