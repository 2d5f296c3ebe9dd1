package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sieve/internal/config"
	"sieve/internal/logging"
	"sieve/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "sieve.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "ingest")
	logger.Info("artifact stored",
		logging.String(logging.FieldFingerprint, "1000000010000001"),
		logging.String("note", "two words"))

	line := buf.String()
	if !strings.Contains(line, " INFO ingest: artifact stored") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "fingerprint=1000000010000001") {
		t.Fatalf("expected fingerprint field, got %q", line)
	}
	if !strings.Contains(line, `note="two words"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestConsoleLoggerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("upload").Info("done", logging.Int("bytes", 42))
	if !strings.Contains(buf.String(), "upload.bytes=42") {
		t.Fatalf("expected grouped key, got %q", buf.String())
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("orphan", logging.String(logging.FieldStorageRef, "bafk"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload[logging.FieldStorageRef] != "bafk" {
		t.Fatalf("expected storage_ref field, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "orphaned artifact", "orphaned_artifact",
		logging.Impact("artifact has no registry entry"), logging.StorageRef("bafkreiabc"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload[logging.FieldEventType] != "orphaned_artifact" {
		t.Fatalf("expected event_type, got %v", payload)
	}
	if payload[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", payload)
	}
	if payload[logging.FieldStorageRef] != "bafkreiabc" {
		t.Fatalf("expected storage_ref field, got %v", payload)
	}
	if payload[logging.FieldImpact] != "artifact has no registry entry" {
		t.Fatalf("expected caller impact to win, got %v", payload[logging.FieldImpact])
	}
}

func TestWithContextAddsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRequestID(context.Background(), "req-9")
	ctx = services.WithSource(ctx, "a.jpg")
	logging.WithContext(ctx, base).Info("step")

	out := buf.String()
	if !strings.Contains(out, "correlation_id=req-9") || !strings.Contains(out, "source=a.jpg") {
		t.Fatalf("expected context fields, got %q", out)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
	logger.Error("ignored")
}
