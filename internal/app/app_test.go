package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptalk/commlog/internal/attribution"
	"github.com/taptalk/commlog/internal/config"
	"github.com/taptalk/commlog/internal/eventlog"
	"github.com/taptalk/commlog/internal/export"
	"github.com/taptalk/commlog/internal/logging"
	"github.com/taptalk/commlog/internal/search"
	"github.com/taptalk/commlog/internal/storage"
)

var appTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	if opts.Store == nil {
		opts.Store = storage.NewMemory()
	}
	opts.Clock = eventlog.FixedClock(appTime)
	opts.Logger = logging.Discard()
	opts.AppVersion = "1.2.3"
	opts.UserAgent = "test-agent"

	a, err := New(config.NewConfig(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func startedApp(t *testing.T) *App {
	t.Helper()
	a := newTestApp(t, Options{})
	require.NoError(t, a.Start(context.Background()))
	return a
}

func allRecords(t *testing.T, a *App) []storage.Interaction {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.Flush(ctx))
	records, err := a.GetAll(ctx)
	require.NoError(t, err)
	return records
}

func TestStart_LogsSessionStart(t *testing.T) {
	a := startedApp(t)

	records := allRecords(t, a)
	require.Len(t, records, 1)
	assert.Equal(t, eventlog.EventSessionStart, records[0].Type)
	assert.Equal(t, map[string]any{
		"sessionId":  a.SessionID(),
		"appVersion": "1.2.3",
		"userAgent":  "test-agent",
	}, records[0].Data)
	assert.True(t, a.Ready())
}

func TestStart_DegradedWhenStoreFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	store := storage.NewStorage(filepath.Join(blocker, "taptalk.db"), logging.Discard())
	a := newTestApp(t, Options{Store: store})
	require.NoError(t, a.Start(context.Background()))
	assert.False(t, a.Ready())

	a.Log(eventlog.EventVocabularyUse, map[string]any{"word": "yes"})
	require.NoError(t, a.Flush(context.Background()))

	// Shown in the panel, never persisted.
	entries := a.Preview().Entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Pending())
	assert.Equal(t, eventlog.EventVocabularyUse, entries[0].Type)

	_, err := a.GetAll(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotReady)
	assert.ErrorIs(t, a.ClearAll(context.Background()), storage.ErrNotReady)
}

func TestTogglePartnerMode(t *testing.T) {
	a := startedApp(t)

	assert.False(t, a.PartnerMode())
	assert.True(t, a.TogglePartnerMode())
	a.Log(eventlog.EventVocabularyUse, map[string]any{"word": "no"})

	records := allRecords(t, a)
	require.Len(t, records, 3)
	assert.Equal(t, eventlog.EventPartnerModeChanged, records[1].Type)
	assert.Equal(t, attribution.UserPartner, records[1].User)
	assert.Equal(t, attribution.UserPartner, records[2].User)
	assert.True(t, a.PartnerMode())
}

func TestPartnerModeScenario(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStorage(filepath.Join(t.TempDir(), "taptalk.db"), logging.Discard())
	a := newTestApp(t, Options{Store: store, Passive: true})
	require.NoError(t, a.Start(ctx))

	a.Log(eventlog.EventVocabularyUse, map[string]any{"word": "yes"})
	require.True(t, a.TogglePartnerMode())
	a.Log(eventlog.EventVocabularyUse, map[string]any{"word": "more"})

	records := allRecords(t, a)
	require.Len(t, records, 3)
	want := []struct {
		typ  string
		user attribution.User
	}{
		{eventlog.EventVocabularyUse, attribution.UserStudent},
		{eventlog.EventPartnerModeChanged, attribution.UserPartner},
		{eventlog.EventVocabularyUse, attribution.UserPartner},
	}
	for i, w := range want {
		assert.Equal(t, int64(i+1), records[i].ID)
		assert.Equal(t, w.typ, records[i].Type)
		assert.Equal(t, w.user, records[i].User)
	}

	// The toggle is itself a partner event.
	env, err := a.BuildExportPayload(ctx)
	require.NoError(t, err)
	assert.Equal(t, export.Metrics{TotalEvents: 3, StudentEvents: 1, PartnerModeEvents: 2}, env.Metrics)
}

func TestNew_FillsMissingSettings(t *testing.T) {
	a, err := New(&config.Config{}, Options{Store: storage.NewMemory(), Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, config.DefaultQueueSize, a.Config().Settings.QueueSize)
	assert.Equal(t, config.DefaultPreviewSize, a.Config().Settings.PreviewSize)
	assert.NotNil(t, a.Config().Vocabulary)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	a := startedApp(t)

	a.Log(eventlog.EventVocabularyUse, map[string]any{"word": "yes"})
	a.Log(eventlog.EventChoiceMade, map[string]any{"choice1": "Rocks", "choice2": "Ball"})
	require.Len(t, allRecords(t, a), 3)

	require.NoError(t, a.ClearAll(ctx))

	records := allRecords(t, a)
	require.Len(t, records, 1)
	assert.Equal(t, eventlog.EventDatabaseCleared, records[0].Type)
	assert.Empty(t, records[0].Data)

	entries := a.Preview().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, eventlog.EventDatabaseCleared, entries[0].Type)

	hits, err := a.Search(ctx, "rocks", search.Options{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestConfirmClear(t *testing.T) {
	assert.NoError(t, ConfirmClear("DELETE"))
	assert.ErrorIs(t, ConfirmClear("delete"), ErrNotConfirmed)
	assert.ErrorIs(t, ConfirmClear(""), ErrNotConfirmed)
}

func TestBuildExportPayload(t *testing.T) {
	a := startedApp(t)
	a.Log(eventlog.EventVocabularyUse, map[string]any{"word": "yes"})
	a.TogglePartnerMode()
	a.Log(eventlog.EventVocabularyUse, map[string]any{"word": "no"})

	env, err := a.BuildExportPayload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, export.Source, env.Source)
	assert.Equal(t, "2025-03-01T09:30:00.000Z", env.ExportDate)
	assert.Equal(t, export.Metrics{TotalEvents: 4, StudentEvents: 2, PartnerModeEvents: 2}, env.Metrics)
}

func TestExport_LogsDataExported(t *testing.T) {
	a := startedApp(t)
	sink := export.FileSink{Dir: t.TempDir(), Clock: eventlog.FixedClock(appTime)}

	res, err := a.Export(context.Background(), sink, export.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)
	assert.FileExists(t, res.Location)

	records := allRecords(t, a)
	require.Len(t, records, 2)
	last := records[1]
	assert.Equal(t, eventlog.EventDataExported, last.Type)
	assert.Equal(t, "download", last.Data["method"])
	assert.EqualValues(t, 1, last.Data["records"])
}

func TestSearchAndSubscribe(t *testing.T) {
	ctx := context.Background()
	a := startedApp(t)
	require.NoError(t, a.Flush(ctx))

	ch, cancel := a.Subscribe(4)
	defer cancel()

	a.Log(eventlog.EventChoiceMade, map[string]any{"choice1": "Walk", "choice2": "Book"})

	select {
	case rec := <-ch:
		assert.Equal(t, eventlog.EventChoiceMade, rec.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no record streamed")
	}

	hits, err := a.Search(ctx, "walk", search.Options{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, eventlog.EventChoiceMade, hits[0].Type)
}

func TestRestart_ReloadsFromStore(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "taptalk.db")

	first := newTestApp(t, Options{Store: storage.NewStorage(dbPath, logging.Discard())})
	require.NoError(t, first.Start(ctx))
	first.Log(eventlog.EventChoiceMade, map[string]any{"choice1": "Coloring", "choice2": "Math"})
	require.NoError(t, first.Close())

	second := newTestApp(t, Options{Store: storage.NewStorage(dbPath, logging.Discard())})
	require.NoError(t, second.Start(ctx))

	records := allRecords(t, second)
	require.Len(t, records, 3)
	assert.NotEqual(t, records[0].SessionID, records[2].SessionID)

	hits, err := second.Search(ctx, "coloring", search.Options{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, records[1].ID, hits[0].ID)

	require.NoError(t, second.RefreshPreview(ctx))
	assert.Len(t, second.Preview().Entries(), 3)
}

func TestSaveVocabulary(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	a := newTestApp(t, Options{ConfigPath: configPath})
	require.NoError(t, a.Start(context.Background()))

	require.NoError(t, a.SaveVocabulary([]string{"Rocks", "Yes"}))

	saved, err := config.LoadFrom(configPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rocks", "Yes"}, saved.Vocabulary.Active)

	err = a.SaveVocabulary([]string{"Rocks", "Trampoline"})
	assert.Error(t, err)
	assert.Equal(t, []string{"Rocks", "Yes"}, a.Config().Vocabulary.Active)

	records := allRecords(t, a)
	require.Len(t, records, 2)
	assert.Equal(t, eventlog.EventSettingsSaved, records[1].Type)
	assert.Equal(t, []any{"Rocks", "Yes"}, toAnySlice(records[1].Data["activeVocabulary"]))
}

func TestSaveVocabulary_NoConfigPath(t *testing.T) {
	a := startedApp(t)
	assert.ErrorIs(t, a.SaveVocabulary([]string{"Yes"}), ErrNoConfigPath)
}

// toAnySlice normalizes []string payloads from the memory store.
func toAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, w := range s {
			out[i] = w
		}
		return out
	}
	return nil
}

func TestStart_PassiveSkipsSessionStart(t *testing.T) {
	a := newTestApp(t, Options{Passive: true})
	require.NoError(t, a.Start(context.Background()))
	assert.Empty(t, allRecords(t, a))
}
