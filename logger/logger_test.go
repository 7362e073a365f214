package logger

import (
	"bytes"
	"encoding/json"
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
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := FromSlog(slog.New(slog.NewJSONHandler(&buf, nil)))

	log.Info("fetch completed", "url", "https://example.com", "status_code", 200)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "fetch completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["url"] != "https://example.com" {
		t.Errorf("url = %v", entry["url"])
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, "debug").With("component", "fetcher")

	log.Debug("attempt started")

	if !strings.Contains(buf.String(), "component=fetcher") {
		t.Errorf("output missing bound field: %s", buf.String())
	}
}

func TestNoopDiscards(t *testing.T) {
	log := Noop()
	log.Debug("a")
	log.Info("b")
	log.Warn("c")
	log.Error("d")
	log.With("k", "v").Info("e")
}

func TestUnwrap(t *testing.T) {
	if Unwrap(Noop()) == nil {
		t.Error("Unwrap should never return nil")
	}
	sl := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if Unwrap(FromSlog(sl)) != sl {
		t.Error("Unwrap should return the wrapped slog.Logger")
	}
}
