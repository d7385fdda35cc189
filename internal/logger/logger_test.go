package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_ConsoleLevel(t *testing.T) {
	var console bytes.Buffer
	log, closeFn, err := New(Options{Level: slog.LevelWarn, Console: &console})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	log.Debug("check finished", "check", "daemon-installed")
	log.Warn("external tool unavailable", "tool", "lsusb")

	out := console.String()
	if strings.Contains(out, "check finished") {
		t.Error("debug record should be filtered at warn level")
	}
	if !strings.Contains(out, "tool=lsusb") {
		t.Errorf("console = %q", out)
	}
}

func TestNew_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	var console bytes.Buffer
	log, closeFn, err := New(Options{Level: slog.LevelWarn, Console: &console, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}

	log.With("run", "abc").Debug("check omitted", "check", "secure-boot")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	if console.Len() != 0 {
		t.Errorf("console should stay quiet, got %q", console.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("file should hold JSON lines: %v\n%s", err, data)
	}
	if entry["msg"] != "check omitted" || entry["check"] != "secure-boot" || entry["run"] != "abc" {
		t.Errorf("entry = %v", entry)
	}
}
