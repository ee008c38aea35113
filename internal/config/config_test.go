package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8090" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Orchestrator.MaxRounds != 5 {
		t.Fatalf("max rounds = %d", cfg.Orchestrator.MaxRounds)
	}
	if cfg.History.EntriesToKeep != 5 {
		t.Fatalf("entries to keep = %d", cfg.History.EntriesToKeep)
	}
}

func TestLoadOverridesOnlyProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"listen_addr": ":9999",
		"provider": {"provider": "anthropic", "model": "claude-sonnet-4-0", "context_window": 200000}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Provider.Provider != "anthropic" {
		t.Fatalf("provider = %q", cfg.Provider.Provider)
	}
	// Untouched sections keep their defaults.
	if cfg.Store.Backend != "memory" {
		t.Fatalf("store backend = %q", cfg.Store.Backend)
	}
	if cfg.Orchestrator.ApprovalMode != "by-tool-annotation" {
		t.Fatalf("approval mode = %q", cfg.Orchestrator.ApprovalMode)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", `{"provider": {"provider": "aol", "context_window": 1000}}`},
		{"unknown backend", `{"store": {"backend": "tape"}}`},
		{"unknown approval mode", `{"orchestrator": {"approval_mode": "maybe"}}`},
		{"zero context window", `{"provider": {"provider": "openai", "context_window": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.ListenAddr = ":7070"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ListenAddr != ":7070" {
		t.Fatalf("round trip lost listen addr: %q", loaded.ListenAddr)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	var mu sync.Mutex
	var latest *Config
	watcher, err := Watch(path, func(cfg *Config) {
		mu.Lock()
		latest = cfg
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer watcher.Close()

	updated := DefaultConfig()
	updated.ListenAddr = ":6001"
	if err := updated.Save(path); err != nil {
		t.Fatalf("save update: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := latest
		mu.Unlock()
		if got != nil && got.ListenAddr == ":6001" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("config change was not observed")
}

func TestWatchIgnoresBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	calls := make(chan *Config, 1)
	watcher, err := Watch(path, func(cfg *Config) { calls <- cfg })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer watcher.Close()

	if err := os.WriteFile(path, []byte(`{"provider": {`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cfg := <-calls:
		t.Fatalf("broken config must not trigger the callback, got %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestResolveAPIKeyPrecedence(t *testing.T) {
	t.Setenv("MODELGATE_TEST_KEY", "from-env")
	t.Setenv("OPENAI_API_KEY", "conventional")

	p := ProviderConfig{Provider: "openai", APIKey: "inline", APIKeyEnvVar: "MODELGATE_TEST_KEY"}
	if got := p.ResolveAPIKey(); got != "inline" {
		t.Fatalf("inline key should win, got %q", got)
	}

	p.APIKey = ""
	if got := p.ResolveAPIKey(); got != "from-env" {
		t.Fatalf("named env var should win, got %q", got)
	}

	p.APIKeyEnvVar = ""
	if got := p.ResolveAPIKey(); got != "conventional" {
		t.Fatalf("conventional env var fallback, got %q", got)
	}
}
