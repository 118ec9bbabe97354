package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/taptalk/commlog/internal/eventlog"
)

// Delivery methods recorded in data_exported events.
const (
	MethodDownload = "download"
	MethodShare    = "share"
)

// Sink receives an encoded export.
type Sink interface {
	// Method names the delivery channel, e.g. "download".
	Method() string
	// Deliver hands payload over and returns where it went.
	Deliver(ctx context.Context, payload []byte, format Format) (string, error)
}

// FileSink writes each export to a new timestamped file in Dir.
type FileSink struct {
	Dir   string
	Clock eventlog.Clock
}

// Method implements Sink.
func (s FileSink) Method() string {
	return MethodDownload
}

// Filename returns the export file name for the given unix millisecond time.
func Filename(unixMilli int64, format Format) string {
	return "taptalk-export-" + strconv.FormatInt(unixMilli, 10) + format.Extension()
}

// Deliver writes payload atomically under an exclusive lock.
func (s FileSink) Deliver(ctx context.Context, payload []byte, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clock := s.Clock
	if clock == nil {
		clock = eventlog.SystemClock
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(s.Dir, Filename(clock.Now().UnixMilli(), format))

	lockFile, err := acquireFileLock(path)
	if err != nil {
		return "", fmt.Errorf("failed to acquire file lock: %w", err)
	}
	defer releaseFileLock(lockFile)

	if err := writeAtomic(path, payload); err != nil {
		return "", err
	}
	return path, nil
}

// WriterSink streams exports to W, e.g. stdout for piping to another tool.
type WriterSink struct {
	W io.Writer
}

// Method implements Sink.
func (s WriterSink) Method() string {
	return MethodShare
}

// Deliver implements Sink.
func (s WriterSink) Deliver(ctx context.Context, payload []byte, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.W.Write(payload); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return "stream", nil
}

// writeAtomic writes data to a temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".taptalk-export-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// acquireFileLock takes an exclusive, non-blocking lock next to path.
func acquireFileLock(path string) (*os.File, error) {
	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("failed to acquire lock (another export in progress?): %w", err)
	}

	return lockFile, nil
}

// releaseFileLock releases the lock and removes the lock file.
func releaseFileLock(lockFile *os.File) error {
	if lockFile == nil {
		return nil
	}

	lockPath := lockFile.Name()
	unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
	lockFile.Close()

	return os.Remove(lockPath)
}
