// Package scheduler exports the interaction log to the export directory on
// a cron schedule, so a day of use is saved without a caregiver asking.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taptalk/commlog/internal/export"
)

// ErrInvalidSchedule is returned for a cron expression that does not parse.
var ErrInvalidSchedule = errors.New("invalid auto export schedule")

// Exporter is the part of the app the scheduler drives.
type Exporter interface {
	FileSink() (export.FileSink, error)
	Export(ctx context.Context, sink export.Sink, format export.Format) (export.Result, error)
}

// Scheduler runs automatic exports.
type Scheduler struct {
	spec     string
	exporter Exporter
	log      *slog.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// New creates a scheduler for spec. An empty spec disables it.
func New(spec string, exporter Exporter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		spec:     spec,
		exporter: exporter,
		log:      logger,
		cron:     cron.New(cron.WithLocation(time.Local)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Validate checks a cron expression without scheduling anything.
func Validate(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, spec, err)
	}
	return nil
}

// NextAfter returns when spec next fires after t.
func NextAfter(spec string, t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, spec, err)
	}
	return sched.Next(t), nil
}

// Enabled reports whether a schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.spec != ""
}

// Start schedules the export job. It is a no-op when disabled.
func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.log.Debug("auto export disabled")
		return nil
	}
	if err := Validate(s.spec); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			s.log.Warn("auto export failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, s.spec, err)
	}

	s.cron.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.log.Info("auto export scheduled", slog.String("schedule", s.spec))
	return nil
}

// Stop waits for a running export to finish and stops the schedule.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	if running {
		<-s.cron.Stop().Done()
	}
	s.cancel()
}

// IsRunning reports whether the schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Next returns the next planned export time, zero when not running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce performs one export to the configured directory.
func (s *Scheduler) RunOnce(ctx context.Context) (export.Result, error) {
	sink, err := s.exporter.FileSink()
	if err != nil {
		return export.Result{}, err
	}

	res, err := s.exporter.Export(ctx, sink, export.FormatJSON)
	if err != nil {
		return res, err
	}
	s.log.Info("auto export written", slog.String("location", res.Location), slog.Int("records", res.Records))
	return res, nil
}
