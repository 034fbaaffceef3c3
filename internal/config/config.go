package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines client configuration.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Push  PushConfig  `yaml:"push"`
	State StateConfig `yaml:"state"`
	Log   LogConfig   `yaml:"log"`
	Sync  SyncConfig  `yaml:"sync"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type PushConfig struct {
	URL string `yaml:"url"`
}

type StateConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		API: APIConfig{
			BaseURL: "http://localhost:4000/api",
			Timeout: 10 * time.Second,
		},
		Push: PushConfig{
			URL: "ws://localhost:4000/ws",
		},
		State: StateConfig{
			Path: "boardsync.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Sync: SyncConfig{
			PollInterval: 10 * time.Second,
		},
	}

	if path := os.Getenv("BOARDSYNC_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if baseURL := os.Getenv("BOARDSYNC_API_URL"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if pushURL := os.Getenv("BOARDSYNC_PUSH_URL"); pushURL != "" {
		cfg.Push.URL = pushURL
	}
	if statePath := os.Getenv("BOARDSYNC_STATE_PATH"); statePath != "" {
		cfg.State.Path = statePath
	}
	if level := os.Getenv("BOARDSYNC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if interval := os.Getenv("BOARDSYNC_POLL_INTERVAL"); interval != "" {
		parsed, err := time.ParseDuration(interval)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BOARDSYNC_POLL_INTERVAL: %w", err)
		}
		cfg.Sync.PollInterval = parsed
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
