// Package logging sets up the process wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options for Setup. An empty File logs to Console only; a nil Console logs to
// File only. The sidebar leaves Console nil since the terminal is its screen.
type Options struct {
	Level   slog.Level
	File    string
	Console io.Writer
}

// Setup installs a text handler writing to a size rotated log file and
// returns the logger together with a closer for the file.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		writers = append(writers, lj)
		closer = lj
	}
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}
	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level}))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
