/*
Package attribution tracks who is driving the board.

Partner mode is switched on by a caregiver or therapist for aided language
stimulation. Every interaction logged while it is active is attributed to the
partner instead of the student, so student analytics can exclude it.
*/
package attribution

import "sync"

// User is the attribution tag written on every interaction record.
type User string

const (
	// UserStudent marks interactions made by the end user.
	UserStudent User = "student"

	// UserPartner marks interactions made while partner mode was on.
	UserPartner User = "partner"
)

// Valid reports whether u is one of the known attribution tags.
func (u User) Valid() bool {
	return u == UserStudent || u == UserPartner
}

// EventPartnerModeChanged is logged on every toggle.
const EventPartnerModeChanged = "partner_mode_changed"

// EventSink receives the toggle event. The event logger satisfies it.
type EventSink interface {
	Log(eventType string, data map[string]any)
}

// Mode is the process-wide partner mode flag. Off by default.
//
// There is no timeout: the operator has to switch it back explicitly.
type Mode struct {
	mu     sync.RWMutex
	active bool
	sink   EventSink
}

// NewMode creates a mode in the student (off) state.
func NewMode() *Mode {
	return &Mode{}
}

// Bind attaches the sink that records toggles.
func (m *Mode) Bind(sink EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// IsActive reports whether partner mode is on.
func (m *Mode) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// User returns the tag for an interaction recorded right now.
func (m *Mode) User() User {
	if m.IsActive() {
		return UserPartner
	}
	return UserStudent
}

// Toggle flips the mode, logs partner_mode_changed and returns the new state.
func (m *Mode) Toggle() bool {
	m.mu.Lock()
	m.active = !m.active
	active := m.active
	sink := m.sink
	m.mu.Unlock()

	// The toggle event is stamped with the new state's attribution.
	if sink != nil {
		sink.Log(EventPartnerModeChanged, map[string]any{"active": active})
	}
	return active
}
