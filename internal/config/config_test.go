package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.StateFileName != "scheduler_state.json" {
		t.Errorf("state file = %q", cfg.StateFileName)
	}
	if cfg.Fetch.MaxAttempts != 5 {
		t.Errorf("max attempts = %d", cfg.Fetch.MaxAttempts)
	}
	if cfg.Seeds.FAQURL == "" || cfg.Seeds.AgenciesURL == "" || cfg.Seeds.MinistriesURL == "" {
		t.Error("seed URLs must have defaults")
	}
	if got := cfg.StatePath(); got != filepath.Join("data", "tmp", "scheduler_state.json") {
		t.Errorf("state path = %q", got)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := []byte("dataDir: /srv/ecitizen\nfetch:\n  maxAttempts: 2\n")
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ECITIZEN_CONFIG", cfgPath)
	t.Setenv("ECITIZEN_STATE_FILE", "alt_state.json")

	cfg := Load()
	if cfg.DataDir != "/srv/ecitizen" {
		t.Errorf("dataDir = %q", cfg.DataDir)
	}
	if cfg.Fetch.MaxAttempts != 2 {
		t.Errorf("maxAttempts = %d, want file override", cfg.Fetch.MaxAttempts)
	}
	if cfg.StateFileName != "alt_state.json" {
		t.Errorf("state file = %q, want env override", cfg.StateFileName)
	}
	// Untouched keys keep defaults.
	if cfg.Seeds.FAQURL != Default().Seeds.FAQURL {
		t.Errorf("faq seed = %q", cfg.Seeds.FAQURL)
	}
}

func TestLoadBadFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(":::not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ECITIZEN_CONFIG", cfgPath)

	cfg := Load()
	if cfg.DataDir != Default().DataDir {
		t.Errorf("expected defaults on parse failure, got dataDir=%q", cfg.DataDir)
	}
}
