/*
Package config handles loading and saving TapTalk settings.

Configuration is stored in ~/.taptalk/config.json. Environment variables
(see env.go) override the file for a single run without rewriting it.

Schema:

	{
	  "settings": {
	    "dbPath": "~/.taptalk/taptalk.db",
	    "exportDir": "~/.taptalk/exports",
	    "queueSize": 1000,
	    "previewSize": 200,
	    "autoExportSchedule": "0 21 * * *"
	  },
	  "vocabulary": {
	    "active": ["Rocks", "Ball", "Yes", "No"],
	    "bank": ["Rocks", "Ball", "Walk", "Coloring", "Book", "Math", "Writing"],
	    "core": ["Yes", "No"],
	    "turn": ["my-turn", "your-turn"]
	  },
	  "voiceURI": ""
	}
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults.
const (
	DefaultQueueSize   = 1000
	DefaultPreviewSize = 200
	DirName            = ".taptalk"
	FileName           = "config.json"
	DBFileName         = "taptalk.db"
	ExportDirName      = "exports"
)

// Default word lists of the board.
var (
	DefaultBank = []string{"Rocks", "Ball", "Walk", "Coloring", "Book", "Math", "Writing"}
	DefaultCore = []string{"Yes", "No"}
	DefaultTurn = []string{"my-turn", "your-turn"}
)

// Config represents the root configuration structure.
type Config struct {
	// Settings contains runtime options.
	Settings *Settings `json:"settings,omitempty"`

	// Vocabulary is the word board the caregiver configured.
	Vocabulary *Vocabulary `json:"vocabulary,omitempty"`

	// VoiceURI selects the speech voice. Empty means the system default.
	VoiceURI string `json:"voiceURI,omitempty"`
}

// Settings contains runtime options. Zero values select the defaults.
type Settings struct {
	// DBPath is the SQLite database file.
	DBPath string `json:"dbPath,omitempty"`

	// ExportDir receives file exports.
	ExportDir string `json:"exportDir,omitempty"`

	// QueueSize bounds the logger's pending event queue.
	QueueSize int `json:"queueSize,omitempty"`

	// PreviewSize bounds the live preview panel.
	PreviewSize int `json:"previewSize,omitempty"`

	// AutoExportSchedule is a cron expression. Empty disables auto export.
	AutoExportSchedule string `json:"autoExportSchedule,omitempty"`
}

// Vocabulary lists the words available on the board and the active subset.
type Vocabulary struct {
	Active []string `json:"active"`
	Bank   []string `json:"bank"`
	Core   []string `json:"core"`
	Turn   []string `json:"turn"`
}

// NewConfig creates a configuration holding the defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills nil sections and zero settings in place.
func (c *Config) ApplyDefaults() {
	if c.Settings == nil {
		c.Settings = &Settings{}
	}
	if c.Settings.QueueSize == 0 {
		c.Settings.QueueSize = DefaultQueueSize
	}
	if c.Settings.PreviewSize == 0 {
		c.Settings.PreviewSize = DefaultPreviewSize
	}

	if c.Vocabulary == nil {
		c.Vocabulary = &Vocabulary{}
	}
	v := c.Vocabulary
	if v.Bank == nil {
		v.Bank = append([]string{}, DefaultBank...)
	}
	if v.Core == nil {
		v.Core = append([]string{}, DefaultCore...)
	}
	if v.Turn == nil {
		v.Turn = append([]string{}, DefaultTurn...)
	}
	if v.Active == nil {
		v.Active = append(append([]string{}, v.Bank...), v.Core...)
	}
}

// DefaultDir returns ~/.taptalk.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// GetDefaultConfigPath returns the path to ~/.taptalk/config.json.
func GetDefaultConfigPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// ResolvedDBPath returns the database path, defaulting to ~/.taptalk/taptalk.db.
func (c *Config) ResolvedDBPath() (string, error) {
	if c.Settings != nil && c.Settings.DBPath != "" {
		return expandHome(c.Settings.DBPath)
	}
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFileName), nil
}

// ResolvedExportDir returns the export directory, defaulting to
// ~/.taptalk/exports.
func (c *Config) ResolvedExportDir() (string, error) {
	if c.Settings != nil && c.Settings.ExportDir != "" {
		return expandHome(c.Settings.ExportDir)
	}
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ExportDirName), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !hasHomePrefix(path) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && path[1] == '/'
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadOrCreate reads path, writing a default configuration there first if
// none exists.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := LoadFrom(path)
	if err == nil {
		return cfg, nil
	}

	if !IsNotFound(err) {
		return nil, err
	}

	cfg = NewConfig()
	if err := Save(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}
