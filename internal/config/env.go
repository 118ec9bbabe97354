package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// DisableValue turns auto export off from the environment.
const DisableValue = "off"

// EnvOverrides are per-run overrides read from the environment. A .env file
// in the working directory is loaded into the environment by main.
type EnvOverrides struct {
	DBPath     string `env:"TAPTALK_DB_PATH"`
	ExportDir  string `env:"TAPTALK_EXPORT_DIR"`
	QueueSize  int    `env:"TAPTALK_QUEUE_SIZE"`
	AutoExport string `env:"TAPTALK_AUTO_EXPORT"`
	LogLevel   string `env:"TAPTALK_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"TAPTALK_LOG_FORMAT" envDefault:"text"`
}

// ParseEnv reads EnvOverrides from the process environment.
func ParseEnv() (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return EnvOverrides{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return o, nil
}

// Apply copies set overrides into cfg. The file on disk is not touched.
func (o EnvOverrides) Apply(cfg *Config) {
	if cfg.Settings == nil {
		cfg.Settings = &Settings{}
	}
	if o.DBPath != "" {
		cfg.Settings.DBPath = o.DBPath
	}
	if o.ExportDir != "" {
		cfg.Settings.ExportDir = o.ExportDir
	}
	if o.QueueSize > 0 {
		cfg.Settings.QueueSize = o.QueueSize
	}
	switch o.AutoExport {
	case "":
	case DisableValue:
		cfg.Settings.AutoExportSchedule = ""
	default:
		cfg.Settings.AutoExportSchedule = o.AutoExport
	}
}
