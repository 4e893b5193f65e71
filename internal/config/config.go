// Package config loads application configuration from a YAML file and
// SC_* environment variables. Environment variables take precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/songscout/internal/logging"
	"github.com/sydlexius/songscout/internal/research"
)

// Config holds all application configuration.
type Config struct {
	Sources  SourcesConfig  `yaml:"sources"`
	Research ResearchConfig `yaml:"research"`
	Logging  logging.Config `yaml:"logging"`
}

// SourcesConfig holds per-source settings. An empty base URL means the
// adapter's built-in default endpoint.
type SourcesConfig struct {
	Wikipedia   WikipediaConfig   `yaml:"wikipedia"`
	SongBPM     SongBPMConfig     `yaml:"songbpm"`
	MusicBrainz MusicBrainzConfig `yaml:"musicbrainz"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
}

// WikipediaConfig holds encyclopedic source settings.
type WikipediaConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SongBPMConfig holds tempo/key source settings. Without an API key the
// source reports itself as reachable but inconclusive.
type SongBPMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// MusicBrainzConfig holds music-database source settings.
type MusicBrainzConfig struct {
	BaseURL string `yaml:"base_url"`
}

// OpenAIConfig holds language-model source settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// ResearchConfig holds orchestration and scoring settings.
type ResearchConfig struct {
	TimeoutSeconds int              `yaml:"timeout_seconds"`
	UseLLM         bool             `yaml:"use_llm"`
	Weights        research.Weights `yaml:"weights"`
}

// Timeout returns the per-source call timeout.
func (r ResearchConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Research: ResearchConfig{
			TimeoutSeconds: 10,
			UseLLM:         true,
			Weights:        research.DefaultWeights(),
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SC_SONGBPM_API_KEY"); v != "" {
		c.Sources.SongBPM.APIKey = v
	}
	if v := os.Getenv("SC_SONGBPM_BASE_URL"); v != "" {
		c.Sources.SongBPM.BaseURL = v
	}
	if v := os.Getenv("SC_OPENAI_API_KEY"); v != "" {
		c.Sources.OpenAI.APIKey = v
	}
	if v := os.Getenv("SC_OPENAI_MODEL"); v != "" {
		c.Sources.OpenAI.Model = v
	}
	if v := os.Getenv("SC_OPENAI_BASE_URL"); v != "" {
		c.Sources.OpenAI.BaseURL = v
	}
	if v := os.Getenv("SC_WIKIPEDIA_BASE_URL"); v != "" {
		c.Sources.Wikipedia.BaseURL = v
	}
	if v := os.Getenv("SC_MUSICBRAINZ_BASE_URL"); v != "" {
		c.Sources.MusicBrainz.BaseURL = v
	}
	if v := os.Getenv("SC_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Research.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("SC_USE_LLM"); v != "" {
		if useLLM, err := strconv.ParseBool(v); err == nil {
			c.Research.UseLLM = useLLM
		}
	}
	if v := os.Getenv("SC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SC_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SC_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Research.TimeoutSeconds < 1 || c.Research.TimeoutSeconds > 300 {
		return fmt.Errorf("invalid timeout_seconds: %d", c.Research.TimeoutSeconds)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if err := validateWeights(c.Research.Weights); err != nil {
		return err
	}
	return nil
}

func validateWeights(w research.Weights) error {
	fields := map[string]float64{
		"bpm_primary":    w.BPMPrimary,
		"bpm_fallback":   w.BPMFallback,
		"key_primary":    w.KeyPrimary,
		"key_fallback":   w.KeyFallback,
		"genre_primary":  w.GenrePrimary,
		"genre_fallback": w.GenreFallback,
		"year_primary":   w.YearPrimary,
		"year_fallback":  w.YearFallback,
		"summary":        w.Summary,
		"canonical_url":  w.CanonicalURL,
		"floor":          w.Floor,
	}
	for name, v := range fields {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s out of range: %v", name, v)
		}
	}
	if w.MultiSourceBoost < 1 {
		return fmt.Errorf("multi_source_boost must be >= 1: %v", w.MultiSourceBoost)
	}
	return nil
}
