package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spendbar/spendbar/internal/core"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RefreshIntervalSeconds != 300 || cfg.Currency != "USD" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Enabled(core.ProviderCursor) || !cfg.Enabled(core.ProviderClaude) {
		t.Error("both providers should be enabled by default")
	}
}

func TestLoadFromValidatesRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	data := `{"refresh_interval_seconds":-5,"currency":"","warning_limit_usd":0,"upper_limit_usd":0,"enabled_providers":["cursor"]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RefreshIntervalSeconds != 300 {
		t.Errorf("RefreshIntervalSeconds = %d", cfg.RefreshIntervalSeconds)
	}
	if cfg.Currency != "USD" {
		t.Errorf("Currency = %q", cfg.Currency)
	}
	if cfg.WarningLimitUSD <= 0 || cfg.UpperLimitUSD <= cfg.WarningLimitUSD {
		t.Errorf("limits = %v / %v", cfg.WarningLimitUSD, cfg.UpperLimitUSD)
	}
	if cfg.Enabled(core.ProviderClaude) {
		t.Error("claude should stay disabled when the file lists only cursor")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "settings.json")

	want := DefaultConfig()
	want.Currency = "EUR"
	want.RefreshIntervalSeconds = 60

	if err := SaveTo(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Currency != "EUR" || got.RefreshIntervalSeconds != 60 {
		t.Errorf("got = %+v", got)
	}
}
