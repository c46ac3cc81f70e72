// Package config loads and saves the spendbar settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spendbar/spendbar/internal/core"
)

type Config struct {
	RefreshIntervalSeconds int      `json:"refresh_interval_seconds"`
	Currency               string   `json:"currency"`
	WarningLimitUSD        float64  `json:"warning_limit_usd"`
	UpperLimitUSD          float64  `json:"upper_limit_usd"`
	EnabledProviders       []string `json:"enabled_providers"`
	ClaudeLogDir           string   `json:"claude_log_dir,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		RefreshIntervalSeconds: 300,
		Currency:               "USD",
		WarningLimitUSD:        200,
		UpperLimitUSD:          1000,
		EnabledProviders:       []string{string(core.ProviderCursor), string(core.ProviderClaude)},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "spendbar")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "spendbar")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func SessionsPath() string {
	return filepath.Join(ConfigDir(), "sessions.json")
}

func CredentialsPath() string {
	return filepath.Join(ConfigDir(), "credentials.json")
}

func HistoryPath() string {
	return filepath.Join(ConfigDir(), "history.db")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.RefreshIntervalSeconds <= 0 {
		cfg.RefreshIntervalSeconds = 300
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.WarningLimitUSD <= 0 {
		cfg.WarningLimitUSD = DefaultConfig().WarningLimitUSD
	}
	if cfg.UpperLimitUSD <= cfg.WarningLimitUSD {
		cfg.UpperLimitUSD = cfg.WarningLimitUSD * 5
	}
	if len(cfg.EnabledProviders) == 0 {
		cfg.EnabledProviders = DefaultConfig().EnabledProviders
	}

	return cfg, nil
}

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Enabled reports whether a provider is in the enabled set.
func (c Config) Enabled(p core.Provider) bool {
	for _, name := range c.EnabledProviders {
		if name == string(p) {
			return true
		}
	}
	return false
}
