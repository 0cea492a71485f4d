// Package cli is the interactive terminal front end of condofee.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8080"
	DefaultTimeout = 15 * time.Second
)

// Config holds CLI configuration
type Config struct {
	BaseURL     string        `yaml:"baseURL"`
	Timeout     time.Duration `yaml:"timeout"`
	TokenPath   string        `yaml:"tokenPath"`
	HistoryFile string        `yaml:"historyFile"`
	PrettyJSON  *bool         `yaml:"prettyJSON"`
	Debug       bool          `yaml:"debug"`
}

// LoadConfig reads path. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file failed: %w", err)
		}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	// Without a home directory the paths stay empty: tokens are then not
	// persisted and history is not kept
	if home, err := os.UserHomeDir(); err == nil {
		if cfg.TokenPath == "" {
			cfg.TokenPath = filepath.Join(home, ".condofee", "tokens.json")
		}
		if cfg.HistoryFile == "" {
			cfg.HistoryFile = filepath.Join(home, ".condofee", "history")
		}
	}
	if cfg.PrettyJSON == nil {
		value := true
		cfg.PrettyJSON = &value
	}
}
