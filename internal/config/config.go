// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// Classifier service endpoints. Empty URLs disable the channel;
	// fusion then runs on the remaining evidence.
	FacialClassifierURL string
	VocalClassifierURL  string

	// ChannelTTL expires stale facial/vocal evidence in the fusion
	// engine. Zero means evidence never expires.
	ChannelTTL time.Duration

	// DecayTick is the intensity meter cadence.
	DecayTick time.Duration

	Retention RetentionConfig
	LLM       LLMConfig
}

// RetentionConfig controls how long learner data is kept.
type RetentionConfig struct {
	TranscriptTTL time.Duration
	StudentTTL    time.Duration
}

// LLMConfig configures the remote tutoring composer. An empty URL
// disables the remote path; responses then come from templates.
type LLMConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		DBPath:              getEnv("DB_PATH", "./data/braincell.db"),
		FacialClassifierURL: getEnv("FACIAL_CLASSIFIER_URL", ""),
		VocalClassifierURL:  getEnv("VOCAL_CLASSIFIER_URL", ""),
		ChannelTTL:          getEnvDuration("CHANNEL_TTL", 0),
		DecayTick:           getEnvDuration("DECAY_TICK", time.Second/60),
		Retention: RetentionConfig{
			TranscriptTTL: getEnvDuration("TRANSCRIPT_TTL", 30*24*time.Hour),
			StudentTTL:    getEnvDuration("STUDENT_TTL", 90*24*time.Hour),
		},
		LLM: LLMConfig{
			URL:     getEnv("LLM_URL", ""),
			APIKey:  getEnv("LLM_API_KEY", ""),
			Model:   getEnv("LLM_MODEL", "openrouter/auto"),
			Timeout: getEnvDuration("LLM_TIMEOUT", 20*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ChannelTTL < 0 {
		return fmt.Errorf("CHANNEL_TTL cannot be negative")
	}
	if c.DecayTick <= 0 {
		return fmt.Errorf("DECAY_TICK must be > 0")
	}
	if c.LLM.URL != "" && c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty when LLM_URL is set")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are read as seconds.
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
