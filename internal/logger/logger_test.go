package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"none":    LevelNone,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	l, err := New(LevelDebug, path, "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	l.Info("request %s completed", "abc")
	l.Debug("detail %d", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "request abc completed") {
		t.Errorf("log file missing info line: %q", content)
	}
	if !strings.Contains(content, "[test]") {
		t.Errorf("log file missing prefix: %q", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	l, err := New(LevelWarn, path, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	l.Debug("hidden")
	l.Info("also hidden")
	l.Warn("visible")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "hidden") {
		t.Errorf("debug/info lines should be filtered: %q", content)
	}
	if !strings.Contains(content, "visible") {
		t.Errorf("warn line missing: %q", content)
	}
}

func TestWithPrefixChains(t *testing.T) {
	l, err := New(LevelNone, "", "history")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	child := l.WithPrefix("compress")
	if child.prefix != "history:compress" {
		t.Errorf("expected chained prefix, got %q", child.prefix)
	}
}
