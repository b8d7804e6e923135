package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	NewComponentLogger(logger, "scraper").Info("cycle started", Int("due", 2))

	line := buf.String()
	if !strings.Contains(line, "[scraper]") {
		t.Fatalf("component not promoted: %q", line)
	}
	if !strings.Contains(line, "cycle started") {
		t.Fatalf("message missing: %q", line)
	}
	if !strings.Contains(line, "due=2") {
		t.Fatalf("attr missing: %q", line)
	}
}

func TestConsoleHandlerQuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("msg", String("name", "One Piece"))

	if !strings.Contains(buf.String(), `name="One Piece"`) {
		t.Fatalf("spaced value not quoted: %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be suppressed: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))

	logger.Error("boom", String(FieldEventType, "scrape_failed"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json log line: %v", err)
	}
	if decoded["level"] != "error" {
		t.Fatalf("level = %v, want error", decoded["level"])
	}
	if decoded["msg"] != "boom" {
		t.Fatalf("msg = %v, want boom", decoded["msg"])
	}
	if _, ok := decoded["ts"]; !ok {
		t.Fatal("ts field missing")
	}
	if decoded[FieldEventType] != "scrape_failed" {
		t.Fatalf("event_type = %v", decoded[FieldEventType])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should disable all levels")
	}
}
