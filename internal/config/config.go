// Package config holds runtime settings for the scraper. Everything is
// passed explicitly into constructors; there are no ambient globals.
package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "ECITIZEN_CONFIG"
	dataDirEnv    = "ECITIZEN_DATA_DIR"
	stateFileEnv  = "ECITIZEN_STATE_FILE"
)

// Config holds high-level settings required across the application.
type Config struct {
	DataDir       string      `yaml:"dataDir"`
	StateFileName string      `yaml:"stateFileName"`
	Seeds         SeedConfig  `yaml:"seeds"`
	Fetch         FetchConfig `yaml:"fetch"`
	Rate          RateConfig  `yaml:"rate"`
	Retry         RetryConfig `yaml:"retry"`
}

// SeedConfig lists the portal entry points the pipeline starts from.
type SeedConfig struct {
	FAQURL        string `yaml:"faqUrl"`
	AgenciesURL   string `yaml:"agenciesUrl"`
	MinistriesURL string `yaml:"ministriesUrl"`
}

// FetchConfig controls the HTTP client.
type FetchConfig struct {
	UserAgent      string `yaml:"userAgent"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	MaxAttempts    int    `yaml:"maxAttempts"`
	MaxBodyBytes   int64  `yaml:"maxBodyBytes"`
	BatchWorkers   int    `yaml:"batchWorkers"`
}

// RateConfig is the normal-mode inter-request delay band, in seconds.
type RateConfig struct {
	MinDelaySeconds  float64 `yaml:"minDelaySeconds"`
	MaxDelaySeconds  float64 `yaml:"maxDelaySeconds"`
	MinJitterSeconds float64 `yaml:"minJitterSeconds"`
	MaxJitterSeconds float64 `yaml:"maxJitterSeconds"`
}

// RetryConfig is the backoff-mode delay band entered after retryable
// fetch failures.
type RetryConfig struct {
	BaseDelaySeconds float64 `yaml:"baseDelaySeconds"`
	MaxDelaySeconds  float64 `yaml:"maxDelaySeconds"`
	MinJitterSeconds float64 `yaml:"minJitterSeconds"`
	MaxJitterSeconds float64 `yaml:"maxJitterSeconds"`
	Requests         int     `yaml:"requests"`
	CooldownSeconds  float64 `yaml:"cooldownSeconds"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides on top of the defaults.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = Default()
		}
	}

	if v := os.Getenv(dataDirEnv); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(stateFileEnv); v != "" {
		cfg.StateFileName = v
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:       "data",
		StateFileName: "scheduler_state.json",
		Seeds: SeedConfig{
			FAQURL:        "https://ecitizen.go.ke/en/help-and-support",
			AgenciesURL:   "https://ecitizen.go.ke/en/agencies",
			MinistriesURL: "https://accounts.ecitizen.go.ke/en/home/national-ministries",
		},
		Fetch: FetchConfig{
			UserAgent:      "kenya-ecitizen-scraper/1.0 (public research dataset)",
			TimeoutSeconds: 30,
			MaxAttempts:    5,
			MaxBodyBytes:   5 * 1024 * 1024,
			BatchWorkers:   4,
		},
		Rate: RateConfig{
			MinDelaySeconds:  2.0,
			MaxDelaySeconds:  6.0,
			MinJitterSeconds: 0.0,
			MaxJitterSeconds: 4.0,
		},
		Retry: RetryConfig{
			BaseDelaySeconds: 10.0,
			MaxDelaySeconds:  20.0,
			MinJitterSeconds: 0.0,
			MaxJitterSeconds: 4.0,
			Requests:         10,
			CooldownSeconds:  180.0,
		},
	}
}

// Derived paths under the data directory.

func (c Config) RawDir() string       { return filepath.Join(c.DataDir, "raw") }
func (c Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }
func (c Config) InsightsDir() string  { return filepath.Join(c.DataDir, "insights") }
func (c Config) TempDir() string      { return filepath.Join(c.DataDir, "tmp") }

// StatePath is the location of the persisted scheduler snapshot.
func (c Config) StatePath() string {
	return filepath.Join(c.TempDir(), c.StateFileName)
}

// LockPath is the location of the run lock.
func (c Config) LockPath() string {
	return filepath.Join(c.TempDir(), "run.lock")
}

// FetchTimeout returns the HTTP timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
