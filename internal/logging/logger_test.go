package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want log.Level
	}{
		{"", log.InfoLevel},
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"bogus", log.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("AVM1DUMP_LOG_LEVEL", tt.env)
			if got := levelFromEnv(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if IsDebug() != (tt.want == log.DebugLevel) {
				t.Errorf("IsDebug disagrees with level %v", tt.want)
			}
		})
	}
}

func TestNewLoggerWithWriter(t *testing.T) {
	t.Setenv("AVM1DUMP_LOG_LEVEL", "warn")
	t.Setenv("AVM1DUMP_LOG_PREFIX", "test")

	var buf bytes.Buffer
	lc := NewLoggerWithWriter(&buf)
	lc.Info("hidden")
	lc.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "test") || !strings.Contains(out, "key=value") {
		t.Errorf("unexpected log output %q", out)
	}
	if err := lc.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
