/*
Package storage provides the data model for the interaction log.

An Interaction is one logged user or operator action. Records are created once
on append and never change afterwards; the only way to remove them is the bulk
ClearAll operation.
*/
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taptalk/commlog/internal/attribution"
)

// PendingID is the id carried by a record that was never persisted.
// It is rendered as "pending" in JSON.
const PendingID int64 = 0

// TimestampLayout is ISO-8601 with millisecond precision.
// Timestamps are always stored in UTC so they sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in the record timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Interaction represents a single logged interaction.
type Interaction struct {
	// ID is assigned by the store on append. PendingID until then.
	ID int64 `json:"-"`

	// Timestamp is when the interaction was logged (ISO-8601, UTC).
	Timestamp string `json:"timestamp"`

	// SessionID identifies the process run that logged the record.
	SessionID string `json:"sessionId"`

	// Type is the event kind, e.g. "vocabulary_use". Open vocabulary.
	Type string `json:"type"`

	// Data is the free-form payload; its shape depends on Type.
	Data map[string]any `json:"data"`

	// User is the attribution at the moment of logging.
	User attribution.User `json:"user"`

	// Words and View are the word-board projection of Data, kept at the top
	// level for consumers of the older record shape.
	Words []string `json:"words,omitempty"`
	View  string   `json:"view,omitempty"`
}

// Pending reports whether the record never reached the store.
func (r Interaction) Pending() bool {
	return r.ID == PendingID
}

// plainInteraction drops the JSON methods so it can be embedded.
type plainInteraction Interaction

type interactionJSON struct {
	ID any `json:"id"`
	plainInteraction
}

// MarshalJSON writes the id first, as a number or as "pending".
func (r Interaction) MarshalJSON() ([]byte, error) {
	var id any = r.ID
	if r.Pending() {
		id = "pending"
	}
	return json.Marshal(interactionJSON{ID: id, plainInteraction: plainInteraction(r)})
}

// UnmarshalJSON accepts both numeric and "pending" ids, and the legacy
// "eventType" key in place of "type".
func (r *Interaction) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        json.RawMessage `json:"id"`
		EventType string          `json:"eventType"`
		plainInteraction
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	id := PendingID
	raw := bytes.TrimSpace(wire.ID)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte(`"pending"`)):
	default:
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("invalid interaction id %s: %w", raw, err)
		}
	}

	*r = Interaction(wire.plainInteraction)
	r.ID = id
	if r.Type == "" {
		r.Type = wire.EventType
	}
	return nil
}

// validate checks the fields every persisted record must carry.
func (r Interaction) validate() error {
	switch {
	case r.Timestamp == "":
		return fmt.Errorf("missing timestamp")
	case r.SessionID == "":
		return fmt.Errorf("missing session id")
	case r.Type == "":
		return fmt.Errorf("missing type")
	case !r.User.Valid():
		return fmt.Errorf("invalid user %q", r.User)
	}
	return nil
}

// Summary is the caregiver dashboard view of the store.
type Summary struct {
	// Count is the number of stored interactions.
	Count int `json:"count"`

	// Oldest is the earliest stored timestamp, empty when Count is 0.
	Oldest string `json:"oldest,omitempty"`
}
