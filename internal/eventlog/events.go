/*
Package eventlog is the write path of the interaction log.

Log stamps each event with the time, the session id and the current
attribution, then hands it to a background writer that appends it to the store
and notifies observers. Logging is strictly secondary to communication: Log
never blocks, never panics and never reports an error to its caller.
*/
package eventlog

import "github.com/taptalk/commlog/internal/attribution"

// Event types written by the board. The set is open; callers may log others.
const (
	EventSessionStart       = "session_start"
	EventViewChanged        = "view_changed"
	EventVocabularyUse      = "vocabulary_use"
	EventChoiceSlotFilled   = "choice_slot_filled"
	EventChoiceMade         = "choice_made"
	EventChoiceCleared      = "choice_cleared"
	EventSettingsSaved      = "settings_saved"
	EventPartnerModeChanged = attribution.EventPartnerModeChanged
	EventDatabaseCleared    = "database_cleared"
	EventDataExported       = "data_exported"
)

// KnownEventTypes lists the built-in vocabulary in a stable order.
var KnownEventTypes = []string{
	EventSessionStart,
	EventViewChanged,
	EventVocabularyUse,
	EventChoiceSlotFilled,
	EventChoiceMade,
	EventChoiceCleared,
	EventSettingsSaved,
	EventPartnerModeChanged,
	EventDatabaseCleared,
	EventDataExported,
}

// IsKnownEventType reports whether t is part of the built-in vocabulary.
func IsKnownEventType(t string) bool {
	for _, known := range KnownEventTypes {
		if known == t {
			return true
		}
	}
	return false
}
