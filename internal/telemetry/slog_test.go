package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLogger_AcceptsAnyConfigValue(t *testing.T) {
	for _, format := range []string{"json", "text", "JSON", "", "unknown"} {
		for _, level := range []string{"debug", "info", "warn", "error", "", "unknown"} {
			SetupLogger(format, level)
		}
	}
	// Restore a quiet default so other tests in this binary are unaffected.
	SetupLogger("text", "error")
}

func TestJSONHandler_OutputDecodes(t *testing.T) {
	// Same handler construction as SetupLogger("json", "info"), captured in a
	// buffer instead of stdout.
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("save completed", "entity", "dscr", "project_id", 1)

	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if obj["msg"] != "save completed" {
		t.Errorf("msg = %v, want save completed", obj["msg"])
	}
	if obj["entity"] != "dscr" {
		t.Errorf("entity = %v, want dscr", obj["entity"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger.Info("suppressed")
	logger.Warn("surfaced")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info record appeared despite warn-level filter")
	}
	if !strings.Contains(out, "surfaced") {
		t.Error("warn record was unexpectedly suppressed")
	}
}
