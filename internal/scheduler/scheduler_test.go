package scheduler

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptalk/commlog/internal/app"
	"github.com/taptalk/commlog/internal/config"
	"github.com/taptalk/commlog/internal/eventlog"
	"github.com/taptalk/commlog/internal/export"
	"github.com/taptalk/commlog/internal/logging"
	"github.com/taptalk/commlog/internal/storage"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Settings.ExportDir = t.TempDir()

	a, err := app.New(cfg, app.Options{
		Store:  storage.NewMemory(),
		Clock:  eventlog.FixedClock(time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC)),
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Close() })
	return a
}

type failingExporter struct{}

func (failingExporter) FileSink() (export.FileSink, error) {
	return export.FileSink{}, errors.New("no export dir")
}

func (failingExporter) Export(ctx context.Context, sink export.Sink, format export.Format) (export.Result, error) {
	return export.Result{}, nil
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate("0 21 * * *"))
	assert.NoError(t, Validate("@hourly"))
	assert.ErrorIs(t, Validate("every evening"), ErrInvalidSchedule)
	assert.ErrorIs(t, Validate("61 * * * *"), ErrInvalidSchedule)
}

func TestNextAfter(t *testing.T) {
	from := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	next, err := NextAfter("0 21 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC), next)

	next, err = NextAfter("@hourly", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), next)

	_, err = NextAfter("nope", from)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestStart_Disabled(t *testing.T) {
	s := New("", newTestApp(t), logging.Discard())
	require.NoError(t, s.Start())
	assert.False(t, s.Enabled())
	assert.False(t, s.IsRunning())
	assert.True(t, s.Next().IsZero())
	s.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New("not a schedule", newTestApp(t), logging.Discard())
	assert.ErrorIs(t, s.Start(), ErrInvalidSchedule)
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestStart_SchedulesExport(t *testing.T) {
	s := New("0 21 * * *", newTestApp(t), logging.Discard())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.IsRunning())
	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 21, next.Hour())
}

func TestRunOnce_WritesExport(t *testing.T) {
	a := newTestApp(t)
	s := New("@daily", a, logging.Discard())

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, export.MethodDownload, res.Method)
	assert.Equal(t, 1, res.Records)
	assert.FileExists(t, res.Location)

	data, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source": "TapTalk_AAC"`)

	require.NoError(t, a.Flush(context.Background()))
	records, err := a.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, eventlog.EventDataExported, records[1].Type)
}

func TestRunOnce_SinkError(t *testing.T) {
	s := New("@daily", failingExporter{}, logging.Discard())
	_, err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "no export dir")
}
