package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"":        slog.LevelDebug,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestNewWriterFormats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	NewWriter(&jsonBuf, "info", "json").Info("cycle finished", "connector", "sheets")
	var record map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &record); err != nil {
		t.Fatalf("expected json output, got %q: %v", jsonBuf.String(), err)
	}
	if record["connector"] != "sheets" {
		t.Fatalf("unexpected record: %v", record)
	}

	var textBuf bytes.Buffer
	logger := NewWriter(&textBuf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "id", "a1")
	if out := textBuf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "id=a1") {
		t.Fatalf("unexpected text output: %q", out)
	}
}
