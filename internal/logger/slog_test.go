package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSlogHandlerForwardsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	l, err := New(LevelDebug, path, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	sl := slog.New(NewSlogHandler(l))
	sl.Info("tool listed", "server", "files", "count", 3)
	sl.With("conversation", "c1").Warn("slow round")
	sl.WithGroup("redis").Error("dial failed", "addr", "localhost:6379")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	for _, want := range []string{
		"tool listed server=files count=3",
		"slow round conversation=c1",
		"dial failed redis.addr=localhost:6379",
		"[ERROR]",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q: %q", want, content)
		}
	}
}

func TestSlogHandlerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	l, err := New(LevelWarn, path, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	sl := slog.New(NewSlogHandler(l))
	sl.Debug("hidden")
	sl.Info("also hidden")
	sl.Warn("visible")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "hidden") {
		t.Errorf("records below the level should be dropped: %q", content)
	}
	if !strings.Contains(content, "visible") {
		t.Errorf("warn record missing: %q", content)
	}
}
