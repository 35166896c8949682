package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestParseLevel verifies known names map to slog levels and others fail.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// TestLevelFilters verifies records below the configured level are dropped.
func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := newLogger(&buf, Options{Level: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown", "n", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "n=1") {
		t.Errorf("output = %q, want warn record", out)
	}
}

// TestFileCopy verifies records reach both stdout and the log file.
func TestFileCopy(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "treningslogg.log")

	log, closer, err := newLogger(&buf, Options{File: path})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("saved session", "exercises", 3)
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "saved session") {
		t.Errorf("file = %q, want record", data)
	}
	if !strings.Contains(buf.String(), "saved session") {
		t.Errorf("stdout = %q, want record", buf.String())
	}
}
