package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetwatch/internal/logging"
	"meetwatch/internal/services"
)

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "join")
	logger.Info("state changed", logging.String("state", "navigating"), logging.String("url", "a b"))
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "[join] state changed") {
		t.Fatalf("expected component prefix, got %q", out)
	}
	if !strings.Contains(out, "state=navigating") || !strings.Contains(out, `url="a b"`) {
		t.Fatalf("expected fields, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no source location at info level: %q", out)
	}
}

func TestJSONLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pipeline.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("chunk transcribed", logging.Int("chunk", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode json log %q: %v", data, err)
	}
	if entry["msg"] != "chunk transcribed" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key: %v", entry)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "sink reused", "sink_reused", logging.String(logging.FieldImpact, "none"))

	out := buf.String()
	for _, want := range []string{"event_type=sink_reused", "error_hint=", "impact=none"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Count(out, "impact=") != 1 {
		t.Fatalf("impact should not be duplicated: %q", out)
	}
}

func TestWithContextAddsSessionFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithSessionID(context.Background(), "abc-defg-hij")
	ctx = services.WithCommand(ctx, "join")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, base).Info("hello")

	out := buf.String()
	for _, want := range []string{"session_id=abc-defg-hij", "command=join", "correlation_id=req-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestCleanupOldLogsRespectsRetention(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "meetwatch-20200101.log")
	fresh := filepath.Join(dir, "meetwatch-20990101.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -90)
	for _, path := range []string{old, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 30, dir, logging.CommandLogPattern)
	if removed != 1 {
		t.Fatalf("expected one file pruned, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, err=%v", err)
	}
	for _, path := range []string{fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
	if logging.CleanupOldLogs(nil, 0, dir, logging.CommandLogPattern) != 0 {
		t.Fatal("retention 0 should disable pruning")
	}
}
