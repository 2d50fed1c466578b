package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for NewFileLogger.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// FileOptions configures rotation of a log file.
type FileOptions struct {
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// MaxAgeDays removes rotated files older than this.
	MaxAgeDays int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultFileOptions returns the rotation settings used by the CLI.
func DefaultFileOptions() FileOptions {
	return FileOptions{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
	}
}

// NewRotatingWriter returns a writer that appends to path and rotates it
// according to opts. The parent directory is created if needed.
func NewRotatingWriter(path string, opts FileOptions) (io.WriteCloser, error) {
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}

// NewFileLogger creates a logger that writes sanitized text logs to console
// and sanitized JSON logs to a rotated file at path. The returned closer
// closes the file.
func NewFileLogger(console io.Writer, path string, verbose bool, opts FileOptions, extraKeys ...string) (*slog.Logger, io.Closer, error) {
	file, err := NewRotatingWriter(path, opts)
	if err != nil {
		return nil, nil, err
	}

	consoleLevel := slog.LevelWarn
	if verbose {
		consoleLevel = slog.LevelDebug
	}
	handler := NewSecureHandler(fanout{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}, extraKeys...)

	return slog.New(handler), file, nil
}

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
