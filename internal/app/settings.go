package app

import (
	"errors"

	"github.com/taptalk/commlog/internal/config"
	"github.com/taptalk/commlog/internal/eventlog"
)

// ErrNoConfigPath is returned when settings are saved without a config file.
var ErrNoConfigPath = errors.New("no config file to save settings to")

// SaveVocabulary sets the active words, writes the config file and logs
// settings_saved. Nothing is logged if validation or the write fails.
// The file is re-read so environment overrides are never written back.
func (a *App) SaveVocabulary(words []string) error {
	if a.opts.ConfigPath == "" {
		return ErrNoConfigPath
	}

	onDisk, err := config.LoadFrom(a.opts.ConfigPath)
	if config.IsNotFound(err) {
		onDisk, err = config.NewConfig(), nil
	}
	if err != nil {
		return err
	}

	if err := onDisk.Vocabulary.SetActive(words); err != nil {
		return err
	}
	if err := config.Save(onDisk, a.opts.ConfigPath); err != nil {
		return err
	}
	a.cfg.Vocabulary = onDisk.Vocabulary

	a.logger.Log(eventlog.EventSettingsSaved, map[string]any{
		"activeVocabulary": append([]string{}, words...),
	})
	return nil
}
