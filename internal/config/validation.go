package config

import (
	"fmt"
	"strings"
)

// MaxQueueSize bounds settings.queueSize.
const MaxQueueSize = 100000

// Validate checks settings ranges and that every active word is on the board.
func Validate(cfg *Config) error {
	if s := cfg.Settings; s != nil {
		if s.QueueSize < 0 || s.QueueSize > MaxQueueSize {
			return fmt.Errorf("settings.queueSize must be between 1 and %d, got %d", MaxQueueSize, s.QueueSize)
		}
		if s.PreviewSize < 0 {
			return fmt.Errorf("settings.previewSize must not be negative, got %d", s.PreviewSize)
		}
	}

	if v := cfg.Vocabulary; v != nil {
		if err := ValidateActive(v, v.Active); err != nil {
			return err
		}
	}

	return nil
}

// ValidateActive checks that every word in active is offered by v.
func ValidateActive(v *Vocabulary, active []string) error {
	known := make(map[string]bool)
	for _, list := range [][]string{v.Bank, v.Core, v.Turn} {
		for _, w := range list {
			known[w] = true
		}
	}

	var unknown []string
	seen := make(map[string]bool)
	for _, w := range active {
		if !known[w] {
			unknown = append(unknown, w)
		}
		if seen[w] {
			return fmt.Errorf("vocabulary.active lists %q twice", w)
		}
		seen[w] = true
	}
	if len(unknown) > 0 {
		return fmt.Errorf("vocabulary.active has unknown words: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Words returns every word the board offers, in board order.
func (v *Vocabulary) Words() []string {
	out := make([]string, 0, len(v.Bank)+len(v.Core)+len(v.Turn))
	out = append(out, v.Bank...)
	out = append(out, v.Core...)
	out = append(out, v.Turn...)
	return out
}

// SetActive replaces the active word list after validating it.
func (v *Vocabulary) SetActive(words []string) error {
	if err := ValidateActive(v, words); err != nil {
		return err
	}
	v.Active = append([]string{}, words...)
	return nil
}
