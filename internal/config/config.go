// Package config handles Tendo configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/tendo/config.yaml, /etc/tendo/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tendo", "config.yaml"))
	}

	paths = append(paths, "/etc/tendo/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Tendo configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Database   DatabaseConfig   `yaml:"database"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Agent      AgentConfig      `yaml:"agent"`
	Auth       AuthConfig       `yaml:"auth"`
	LogLevel   string           `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DatabaseConfig defines where the SQLite database lives.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OpenRouterConfig defines the completion provider settings.
// APIKey is typically supplied via ${OPENROUTER_API_KEY} expansion.
type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	// MaxRounds caps how many times a single chat request may re-invoke
	// the model after executing tool calls. Zero means the default (8).
	MaxRounds int `yaml:"max_rounds"`
	// HistoryLimit caps how many prior transcript messages are sent as
	// context. Zero means the default (50).
	HistoryLimit int `yaml:"history_limit"`
}

// AuthConfig defines token signing settings.
type AuthConfig struct {
	// TokenSecret signs access tokens. Required for serve mode.
	TokenSecret string `yaml:"token_secret"`
	// TokenTTLMinutes is the access token lifetime (default 30).
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Port: 8000},
		Database: DatabaseConfig{Path: "tendo.db"},
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
		},
		Agent: AgentConfig{
			MaxRounds:    8,
			HistoryLimit: 50,
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 30,
		},
	}
}
