package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "negative queue size",
			mutate:  func(c *Config) { c.Settings.QueueSize = -5 },
			wantErr: "queueSize",
		},
		{
			name:    "queue size too large",
			mutate:  func(c *Config) { c.Settings.QueueSize = MaxQueueSize + 1 },
			wantErr: "queueSize",
		},
		{
			name:    "negative preview size",
			mutate:  func(c *Config) { c.Settings.PreviewSize = -1 },
			wantErr: "previewSize",
		},
		{
			name:    "unknown active word",
			mutate:  func(c *Config) { c.Vocabulary.Active = []string{"Rocks", "Pizza"} },
			wantErr: "Pizza",
		},
		{
			name:    "duplicate active word",
			mutate:  func(c *Config) { c.Vocabulary.Active = []string{"Yes", "Yes"} },
			wantErr: "twice",
		},
		{
			name:   "turn words may be active",
			mutate: func(c *Config) { c.Vocabulary.Active = []string{"my-turn", "your-turn"} },
		},
		{
			name:   "empty active list",
			mutate: func(c *Config) { c.Vocabulary.Active = []string{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() should fail with %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should contain %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestVocabularySetActive(t *testing.T) {
	v := NewConfig().Vocabulary

	if err := v.SetActive([]string{"Book", "No"}); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if strings.Join(v.Active, ",") != "Book,No" {
		t.Errorf("unexpected active list: %v", v.Active)
	}

	if err := v.SetActive([]string{"Book", "Unicorn"}); err == nil {
		t.Error("SetActive should reject unknown words")
	}
	if strings.Join(v.Active, ",") != "Book,No" {
		t.Errorf("failed SetActive must not change the list, got %v", v.Active)
	}
}

func TestVocabularyWords(t *testing.T) {
	v := NewConfig().Vocabulary
	words := v.Words()

	if len(words) != len(DefaultBank)+len(DefaultCore)+len(DefaultTurn) {
		t.Fatalf("unexpected word count %d", len(words))
	}
	if words[0] != "Rocks" || words[len(words)-1] != "your-turn" {
		t.Errorf("words not in board order: %v", words)
	}
}
