package eventlog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/taptalk/commlog/internal/attribution"
	"github.com/taptalk/commlog/internal/observer"
	"github.com/taptalk/commlog/internal/session"
	"github.com/taptalk/commlog/internal/storage"
)

// DefaultQueueSize is the buffer between Log and the writer.
// If full, events are dropped (non-blocking).
const DefaultQueueSize = 1000

// Appender is the part of the store the logger writes to.
type Appender interface {
	Append(ctx context.Context, rec storage.Interaction) (int64, error)
}

// Attribution reports who an interaction logged right now belongs to.
type Attribution interface {
	User() attribution.User
}

// Options configures a Logger. Zero values select the defaults.
type Options struct {
	QueueSize int
	Clock     Clock
	Observer  observer.Observer
	Logger    *slog.Logger
}

// Logger records interactions in the background with non-blocking writes.
type Logger struct {
	store    Appender
	session  session.Context
	mode     Attribution
	clock    Clock
	observer observer.Observer
	log      *slog.Logger

	queue    chan item
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	// mu orders enqueues against Close: nothing is sent once closed is set.
	mu      sync.RWMutex
	closed  atomic.Bool
	dropped atomic.Int64
}

// item is either a record to write or a flush barrier.
type item struct {
	rec  storage.Interaction
	done chan struct{}
}

// New creates a Logger and starts its writer goroutine.
func New(store Appender, sess session.Context, mode Attribution, opts Options) *Logger {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	l := &Logger{
		store:    store,
		session:  sess,
		mode:     mode,
		clock:    opts.Clock,
		observer: opts.Observer,
		log:      opts.Logger,
		queue:    make(chan item, opts.QueueSize),
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.processEvents()

	return l
}

// SessionID returns the id stamped on every record of this run.
func (l *Logger) SessionID() string {
	return l.session.ID()
}

// Log records an interaction. It returns immediately; persistence happens in
// the background and failures are only visible in the developer log.
//
// Timestamp and attribution are captured here, at call time.
func (l *Logger) Log(eventType string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("event logging panicked, app continues", slog.String("type", eventType), slog.Any("panic", r))
		}
	}()

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed.Load() {
		l.dropped.Add(1)
		l.log.Debug("logger closed, dropping event", slog.String("type", eventType))
		return
	}

	rec := storage.Interaction{
		Timestamp: storage.FormatTimestamp(l.clock.Now()),
		SessionID: l.session.ID(),
		Type:      eventType,
		Data:      copyData(data),
		User:      l.mode.User(),
	}
	rec.Words, rec.View = project(rec.Data)

	select {
	case l.queue <- item{rec: rec}:
	default:
		l.dropped.Add(1)
		l.log.Warn("event queue full, dropping event", slog.String("type", eventType))
	}
}

// LogSessionStart records the session_start event for this run.
func (l *Logger) LogSessionStart(appVersion, userAgent string) {
	l.Log(EventSessionStart, map[string]any{
		"sessionId":  l.session.ID(),
		"appVersion": appVersion,
		"userAgent":  userAgent,
	})
}

// Flush waits until every event logged before the call has been handled.
func (l *Logger) Flush(ctx context.Context) error {
	done, err := l.enqueueBarrier(ctx)
	if err != nil || done == nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-l.stopChan:
		// Close drains whatever the writer still sees before it exits.
		l.wg.Wait()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueueBarrier queues a flush marker. It returns nil when the logger is
// already closed.
func (l *Logger) enqueueBarrier(ctx context.Context) (chan struct{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed.Load() {
		return nil, nil
	}
	done := make(chan struct{})
	select {
	case l.queue <- item{done: done}:
		return done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting events, writes what is queued and stops the writer.
func (l *Logger) Close() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed.Store(true)
		l.mu.Unlock()

		close(l.stopChan)
		l.wg.Wait()
	})
}

// Dropped returns how many events were lost to a full queue or logged
// after Close.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// QueueLen returns the number of events waiting to be written.
func (l *Logger) QueueLen() int {
	return len(l.queue)
}

// processEvents is the single writer. Records are written in queue order,
// so ids follow the order Log was called in.
func (l *Logger) processEvents() {
	defer l.wg.Done()

	for {
		select {
		case it := <-l.queue:
			l.handle(it)

		case <-l.stopChan:
			// Drain what is already queued, then exit.
			for {
				select {
				case it := <-l.queue:
					l.handle(it)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) handle(it item) {
	if it.done != nil {
		close(it.done)
		return
	}
	l.write(it.rec)
}

// write appends rec and forwards the outcome to the observer.
//
// A store that is not ready yet yields a pending record for the observer
// only. It is never retried; that window of data loss is accepted so the
// board never waits on storage.
func (l *Logger) write(rec storage.Interaction) {
	id, err := l.store.Append(context.Background(), rec)
	switch {
	case err == nil:
		rec.ID = id
		l.notify(rec)

	case errors.Is(err, storage.ErrNotReady):
		rec.ID = storage.PendingID
		l.log.Debug("store not ready, event shown but not persisted", slog.String("type", rec.Type))
		l.notify(rec)

	default:
		l.log.Warn("event not persisted, app continues",
			slog.String("type", rec.Type),
			slog.Any("error", err),
		)
	}
}

func (l *Logger) notify(rec storage.Interaction) {
	if l.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("observer panicked", slog.Any("panic", r))
		}
	}()
	l.observer.Notify(rec)
}

// copyData detaches the payload from the caller's map. A nil payload
// becomes an empty one.
func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// project lifts "words" and "view" out of the payload for the top-level
// record fields.
func project(data map[string]any) ([]string, string) {
	var words []string
	switch v := data["words"].(type) {
	case []string:
		words = append([]string{}, v...)
	case []any:
		words = make([]string, 0, len(v))
		for _, w := range v {
			if s, ok := w.(string); ok {
				words = append(words, s)
			}
		}
	}

	view, _ := data["view"].(string)
	return words, view
}
