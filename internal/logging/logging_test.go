package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	p := filepath.Join(t.TempDir(), "surveylens.log")
	log, err := New(Options{Level: "warn", File: p, Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hidden")
	log.Warn("visible", zap.Int("rows", 3))
	_ = log.Sync()

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "visible") {
		t.Fatalf("unexpected console output: %q", buf.String())
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &entry); err != nil {
		t.Fatalf("file sink should be JSON: %v (%q)", err, b)
	}
	if entry["msg"] != "visible" || entry["rows"] != float64(3) {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewDebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "error", Debug: true, Console: &buf})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("details")
	if !strings.Contains(buf.String(), "details") {
		t.Fatalf("debug output missing: %q", buf.String())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestCodeHashIsStableAndNormalized(t *testing.T) {
	a, b := Code(" Moon42"), Code("moon42")
	if a.String != b.String || len(a.String) != 8 {
		t.Fatalf("expected equal 8-char hashes, got %q %q", a.String, b.String)
	}
	if strings.Contains(a.String, "moon") {
		t.Fatalf("hash must not contain the code")
	}
}
