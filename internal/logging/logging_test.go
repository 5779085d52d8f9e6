package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelInfo, FormatJSON)
	logger.Debug("hidden")
	logger.Info("dictionary loaded", "forms", 42)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "dictionary loaded" || entry["forms"] != float64(42) {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"].(string); !ok {
		t.Errorf("time = %v", entry["time"])
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug, FormatText)
	logger.Debug("tick", "id", 3)
	if !strings.Contains(buf.String(), "msg=tick") || !strings.Contains(buf.String(), "id=3") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSetup(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	var buf bytes.Buffer
	if _, err := Setup(&buf, "warn", "text"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	slog.Info("quiet")
	slog.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("output = %q", buf.String())
	}

	if _, err := Setup(&buf, "noisy", "text"); err == nil {
		t.Error("Setup accepted a bad level")
	}
}

func TestOpenFile(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	want := filepath.Join(state, "scrawl", "scrawl.log")
	if got := DefaultFile(); got != want {
		t.Errorf("DefaultFile() = %q, want %q", got, want)
	}

	f, err := OpenFile("")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	New(f, LevelInfo, FormatText).Info("first")
	f.Close()

	f, err = OpenFile(want)
	if err != nil {
		t.Fatal(err)
	}
	New(f, LevelInfo, FormatText).Info("second")
	f.Close()

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Errorf("log file did not append: %q", data)
	}
}
