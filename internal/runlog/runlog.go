// Package runlog writes the per-run deployment log: an append-only file of
// timestamped, severity-tagged lines. Every entry is mirrored to a
// *slog.Logger so the operator sees the same stream on the terminal.
package runlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	levelInfo    = "INFO"
	levelSuccess = "SUCCESS"
	levelWarning = "WARNING"
	levelError   = "ERROR"
)

// Log is the run-scoped log file. Writes are sequential within one process,
// but the mutex keeps the file consistent if a stage ever logs from a
// streaming callback.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	mirror *slog.Logger
}

// Open creates a timestamp-named log file in dir and returns the run log.
// A nil mirror falls back to slog.Default().
func Open(dir string, mirror *slog.Logger) (*Log, error) {
	if dir == "" {
		dir = "."
	}
	if mirror == nil {
		mirror = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("deploy-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &Log{file: file, path: path, mirror: mirror}, nil
}

// Path returns the log file location for the operator and the history store.
func (l *Log) Path() string {
	return l.path
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Infof records a progress line.
func (l *Log) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.write(levelInfo, msg)
	l.mirror.Info(msg)
}

// Successf records a completed-stage line.
func (l *Log) Successf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.write(levelSuccess, msg)
	l.mirror.Info(msg, "result", "success")
}

// Warnf records a soft failure; the run continues.
func (l *Log) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.write(levelWarning, msg)
	l.mirror.Warn(msg)
}

// Errorf records a fatal stage failure.
func (l *Log) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.write(levelError, msg)
	l.mirror.Error(msg)
}

func (l *Log) write(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "[%s] [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, msg)
}
