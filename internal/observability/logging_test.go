package observability

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"anthropic key", "key is sk-ant-REDACTED"},
		{"openai key", "sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"labeled token", "api_key: 0123456789abcdef0123456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.in)
			if !strings.Contains(got, "[REDACTED]") {
				t.Errorf("Redact(%q) = %q, expected redaction", tt.in, got)
			}
		})
	}

	plain := "evaluated 12 startups in tier 1"
	if got := Redact(plain); got != plain {
		t.Errorf("Redact(%q) = %q, expected unchanged", plain, got)
	}
}

func TestNewLogger_RedactsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	logger.Info("provider ready", "key", "sk-ant-REDACTED")

	out := buf.String()
	if strings.Contains(out, "sk-ant-") {
		t.Errorf("log output leaked credential: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("log output missing redaction marker: %s", out)
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info record logged despite warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn record missing")
	}
}
