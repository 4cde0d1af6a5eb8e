// Package config loads the application configuration from YAML with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// APIKey authenticates against the Gemini API. The GEMINI_API_KEY
	// environment variable always wins over the file value, so the key
	// never has to live on disk.
	APIKey string `yaml:"api_key"`

	Live struct {
		Model         string `yaml:"model"`
		Voice         string `yaml:"voice"`
		ContextBudget int    `yaml:"context_budget"`
	} `yaml:"live"`

	Chat struct {
		Model string `yaml:"model"`
	} `yaml:"chat"`

	Database struct {
		DSN      string `yaml:"dsn"`
		AutoSave bool   `yaml:"auto_save"`
		SaveName string `yaml:"save_name"`
	} `yaml:"database"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Live.Model = "gemini-live-2.5-flash"
	cfg.Live.Voice = "Puck"
	cfg.Live.ContextBudget = 4000

	cfg.Chat.Model = "gemini-2.5-flash"

	cfg.Database.AutoSave = false
	cfg.Database.SaveName = "autosave"

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	return cfg
}

// Load reads the configuration from path over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadWithFallback loads from the explicit path if given, then the user
// config, then the system config, finally falling back to defaults.
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".quillrc")
		if _, err := os.Stat(userPath); err == nil {
			if cfg, err := Load(userPath); err == nil {
				return cfg, nil
			}
		}
	}

	systemPath := "/etc/quill/config.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		if cfg, err := Load(systemPath); err == nil {
			return cfg, nil
		}
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("QUILL_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
