package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestHelpersNoopBeforeInit(t *testing.T) {
	Logger = nil
	// Must not panic.
	Info("info", "k", "v")
	Debug("debug")
	Warn("warn")
	Error("error")
	if WithPrefix("x") != nil {
		t.Error("expected nil prefixed logger before init")
	}
}

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, log.DebugLevel)
	defer func() { Logger = nil }()

	Info("fetch done", "source", "HousingWire")
	Debug("cache hit", "key", "https://example.com/feed")

	out := buf.String()
	if !strings.Contains(out, "fetch done") || !strings.Contains(out, "HousingWire") {
		t.Errorf("info line missing from output: %q", out)
	}
	if !strings.Contains(out, "cache hit") {
		t.Errorf("debug line missing from output: %q", out)
	}
}

func TestInitCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Warn("test warning", "source", "test")
	Close()
	Logger = nil

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(files))
	}
	if !strings.HasPrefix(files[0].Name(), "pulse-") {
		t.Errorf("unexpected log file name %q", files[0].Name())
	}
}
