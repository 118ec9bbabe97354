// Package session identifies one continuous run of the board.
package session

import "github.com/google/uuid"

// Context carries the session id generated once per process.
type Context struct {
	id string
}

// New generates a fresh, time-ordered session id.
func New() Context {
	return Context{id: uuid.Must(uuid.NewV7()).String()}
}

// WithID wraps an existing id, e.g. one handed over by the UI host.
func WithID(id string) Context {
	return Context{id: id}
}

// ID returns the session id.
func (c Context) ID() string {
	return c.id
}
