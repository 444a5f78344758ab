package logger

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   LogLevel
		want slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := parseLogLevel(tc.in); got != tc.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_DoesNotPanicOnEitherFormat(t *testing.T) {
	for _, format := range []OutputFormat{FormatText, FormatJSON, ""} {
		log := New(Config{Level: LevelDebug, Format: format, Component: "test"})
		if log == nil || log.Logger == nil {
			t.Fatalf("New returned nil logger for format %q", format)
		}
		log.Debug("probe", "format", string(format))
	}
}

func TestWithStage_ReturnsNewLogger(t *testing.T) {
	base := NewDevelopment("test")
	scoped := base.WithStage("fetch")
	if scoped == base {
		t.Error("WithStage should return a new logger")
	}
	scoped2 := base.WithRegion("US East")
	if scoped2 == base {
		t.Error("WithRegion should return a new logger")
	}
}
