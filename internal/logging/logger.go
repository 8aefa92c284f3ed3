// Package logging builds the charm logger used as the slog backend. Level,
// prefix and file output come from AVM1DUMP_* environment variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser is a logger that owns its output.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the log file, if any.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// NewLoggerWithWriter creates a logger writing to w. If w is an io.Closer it
// is closed by Close.
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           levelFromEnv(),
		Prefix:          prefixFromEnv(),
	})

	lc := &LoggerCloser{Logger: lg}
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		lc.closer = c
	}
	return lc
}

// NewLogger creates a logger configured from the environment:
//
//	AVM1DUMP_LOG_LEVEL    debug, info, warn, error (default info)
//	AVM1DUMP_LOG_PREFIX   message prefix (default "avm1dump")
//	AVM1DUMP_LOG_TO_FILE  "1" writes to avm1dump-<timestamp>.log instead of stderr
func NewLogger() *LoggerCloser {
	if os.Getenv("AVM1DUMP_LOG_TO_FILE") != "1" {
		return NewLoggerWithWriter(os.Stderr)
	}

	name := fmt.Sprintf("avm1dump-%s.log", time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		lc := NewLoggerWithWriter(os.Stderr)
		lc.Warn("Falling back to stderr", "file", name, "error", err)
		return lc
	}
	return NewLoggerWithWriter(f)
}

func levelFromEnv() log.Level {
	level, err := log.ParseLevel(os.Getenv("AVM1DUMP_LOG_LEVEL"))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func prefixFromEnv() string {
	if prefix := os.Getenv("AVM1DUMP_LOG_PREFIX"); prefix != "" {
		return prefix
	}
	return "avm1dump"
}

// IsDebug reports whether AVM1DUMP_LOG_LEVEL asks for debug output.
func IsDebug() bool {
	return levelFromEnv() == log.DebugLevel
}
