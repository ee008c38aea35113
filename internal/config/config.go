package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/codefionn/modelgate/internal/mcptools"
)

// ProviderConfig selects the model backend.
type ProviderConfig struct {
	Provider               string `json:"provider"` // "openai" or "anthropic"
	Model                  string `json:"model"`
	APIKey                 string `json:"api_key,omitempty"`
	APIKeyEnvVar           string `json:"api_key_env,omitempty"`
	ContextWindow          int    `json:"context_window"`
	ReservedResponseTokens int    `json:"reserved_response_tokens"`
}

// ResolveAPIKey returns the configured key, falling back to the named
// environment variable and then to the provider's conventional one.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnvVar != "" {
		if key := strings.TrimSpace(os.Getenv(p.APIKeyEnvVar)); key != "" {
			return key
		}
	}
	switch p.Provider {
	case "openai":
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case "anthropic":
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	return ""
}

// StoreConfig selects the conversation store backend.
type StoreConfig struct {
	Backend       string `json:"backend"` // "memory", "sqlite" or "redis"
	SQLitePath    string `json:"sqlite_path,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
}

// OrchestratorConfig bounds the tool-calling loop.
type OrchestratorConfig struct {
	MaxRounds              int    `json:"max_rounds"`
	PerRoundTimeoutSeconds int    `json:"per_round_timeout_seconds"`
	ToolsEnabled           bool   `json:"tools_enabled"`
	ApprovalMode           string `json:"approval_mode"` // "never", "always", "by-tool-annotation"
	ApprovalTimeoutSeconds int    `json:"approval_timeout_seconds"`
}

// HistoryConfig tunes conversation compression.
type HistoryConfig struct {
	EntriesToKeep int `json:"entries_to_keep"`
}

// QuotaConfig declares limiter names and their limits. Empty means quota
// reporting is served statically with no limiters.
type QuotaConfig struct {
	Limits map[string]int64 `json:"limits,omitempty"`
}

// Config represents application configuration
type Config struct {
	ListenAddr   string                  `json:"listen_addr"`
	LogLevel     string                  `json:"log_level"` // debug, info, warn, error, none
	LogPath      string                  `json:"log_path,omitempty"`
	Provider     ProviderConfig          `json:"provider"`
	Store        StoreConfig             `json:"store"`
	Orchestrator OrchestratorConfig      `json:"orchestrator"`
	History      HistoryConfig           `json:"history"`
	Quota        QuotaConfig             `json:"quota"`
	MCPServers   []mcptools.ServerConfig `json:"mcp_servers,omitempty"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "modelgate")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "modelgate")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "modelgate")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8090",
		LogLevel:   "info",
		Provider: ProviderConfig{
			Provider:               "openai",
			Model:                  "gpt-4o-mini",
			ContextWindow:          128000,
			ReservedResponseTokens: 4096,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Orchestrator: OrchestratorConfig{
			MaxRounds:              5,
			PerRoundTimeoutSeconds: 120,
			ToolsEnabled:           true,
			ApprovalMode:           "by-tool-annotation",
			ApprovalTimeoutSeconds: 60,
		},
		History: HistoryConfig{
			EntriesToKeep: 5,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	// Ensure critical fields have defaults if still empty
	if config.ListenAddr == "" {
		config.ListenAddr = ":8090"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Orchestrator.MaxRounds <= 0 {
		config.Orchestrator.MaxRounds = 5
	}
	if config.Orchestrator.PerRoundTimeoutSeconds <= 0 {
		config.Orchestrator.PerRoundTimeoutSeconds = 120
	}
	if config.Orchestrator.ApprovalTimeoutSeconds <= 0 {
		config.Orchestrator.ApprovalTimeoutSeconds = 60
	}
	if config.History.EntriesToKeep <= 0 {
		config.History.EntriesToKeep = 5
	}
	if config.Store.Backend == "" {
		config.Store.Backend = "memory"
	}

	return config, config.validate()
}

func (c *Config) validate() error {
	switch c.Provider.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider.Provider)
	}
	switch c.Store.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	switch c.Orchestrator.ApprovalMode {
	case "never", "always", "by-tool-annotation", "":
	default:
		return fmt.Errorf("unknown approval mode: %s", c.Orchestrator.ApprovalMode)
	}
	if c.Provider.ContextWindow <= 0 {
		return fmt.Errorf("context_window must be positive")
	}
	if c.Provider.ReservedResponseTokens < 0 {
		return fmt.Errorf("reserved_response_tokens must not be negative")
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
