// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Debug bool
	// File, when set, receives a rotated copy of every record.
	File string
}

// New returns a text logger writing to stdout and, optionally, a rotated file.
// The second return value closes the file sink.
func New(opts Options) (*slog.Logger, func() error) {
	var out io.Writer = os.Stdout
	closer := func() error { return nil }

	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file.Close
	}

	return NewWithWriter(out, opts.Debug), closer
}

// NewWithWriter returns a text logger writing to w.
func NewWithWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
