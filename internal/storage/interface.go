/*
Package storage implements the durable interaction log.

The log is an append-only SQLite table stored at ~/.taptalk/taptalk.db using
modernc.org/sqlite (a pure Go, CGo-free implementation). Ids are assigned by
the store, increase monotonically and are never reused, even after ClearAll.

Open failures are fatal for the process lifetime: the store stays not ready and
every later call returns ErrNotReady instead of blocking.
*/
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned when the store has not (successfully) opened.
	ErrNotReady = errors.New("interaction store not ready")

	// ErrOpenFailed is returned by Open when the database cannot be opened.
	ErrOpenFailed = errors.New("interaction store failed to open")

	// ErrPersist is returned when the database rejects an append.
	ErrPersist = errors.New("interaction not persisted")
)

// Storage defines the interaction log operations.
type Storage interface {
	// Open opens (creating on first use) the store. Idempotent.
	Open(ctx context.Context) error

	// Ready reports whether Open has completed successfully.
	Ready() bool

	// Append persists a new record and returns its assigned id.
	// rec.ID is ignored.
	Append(ctx context.Context, rec Interaction) (int64, error)

	// GetAll returns every stored record. Callers must not rely on the order.
	GetAll(ctx context.Context) ([]Interaction, error)

	// ClearAll irreversibly deletes every record.
	ClearAll(ctx context.Context) error

	// Summary returns the record count and oldest timestamp.
	Summary(ctx context.Context) (Summary, error)

	// Close releases the database handle.
	Close() error
}

// Reader is the read-only view used by export and preview consumers.
type Reader interface {
	GetAll(ctx context.Context) ([]Interaction, error)
}
