/*
Package observer mirrors newly logged interactions for inspection.

Observers are passive: they never influence what is persisted and they must
accept records carrying the pending id (logged while the store was not ready).
Nothing here survives a restart.
*/
package observer

import (
	"log/slog"

	"github.com/taptalk/commlog/internal/storage"
)

// Observer receives every record the event logger has handled.
type Observer interface {
	Notify(rec storage.Interaction)
}

// Func adapts a plain function to Observer.
type Func func(rec storage.Interaction)

// Notify calls f.
func (f Func) Notify(rec storage.Interaction) {
	f(rec)
}

// Fanout forwards each record to several observers. A panicking observer
// does not stop the others.
type Fanout []Observer

// Notify forwards rec to every observer in order.
func (f Fanout) Notify(rec storage.Interaction) {
	for _, o := range f {
		notifySafely(o, rec)
	}
}

func notifySafely(o Observer, rec storage.Interaction) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Warn("observer panicked", slog.Any("panic", r))
		}
	}()
	o.Notify(rec)
}

// SlogObserver writes one debug line per record.
type SlogObserver struct {
	Logger *slog.Logger
}

// Notify logs rec at debug level.
func (s SlogObserver) Notify(rec storage.Interaction) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := slog.Int64("id", rec.ID)
	if rec.Pending() {
		id = slog.String("id", "pending")
	}
	logger.Debug("interaction logged",
		id,
		slog.String("type", rec.Type),
		slog.String("user", string(rec.User)),
		slog.Any("data", rec.Data),
	)
}
