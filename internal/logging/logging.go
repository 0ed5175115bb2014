package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Options controls where and how verbosely netpulse logs.
type Options struct {
	Level string
	File  string
	// Output, when set, takes precedence over File.
	Output io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds a logger writing to opts.File. The TUI owns the terminal, so
// an empty File with no Output discards logs instead of writing to stderr.
func Setup(opts Options) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	l.SetLevel(level)

	if opts.Output != nil {
		l.SetOutput(opts.Output)
		return l, nopCloser{}, nil
	}
	if opts.File == "" {
		l.SetOutput(io.Discard)
		return l, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.SetOutput(f)
	return l, f, nil
}

// ParseLevel accepts logrus level names; empty means info.
func ParseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Discard returns a logger that drops everything. Used as the default for
// components constructed without a logger.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
