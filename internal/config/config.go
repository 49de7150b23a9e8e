// Package config loads the application configuration from YAML with
// environment overrides. The engine receives the resulting struct
// opaquely and never reads the environment itself.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings
// like "30s" or "1500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full application configuration.
type Config struct {
	// Provider selects the LLM backend: "openai" or "claude".
	Provider string `yaml:"provider"`

	// APIKey authenticates with the provider. Falls back to
	// OPENAI_API_KEY / ANTHROPIC_API_KEY when empty.
	APIKey string `yaml:"api_key"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`

	// SystemPrompt shapes the companion's personality.
	SystemPrompt string `yaml:"system_prompt"`

	// Greeting is the puppet's first message after initialization.
	Greeting string `yaml:"greeting"`

	// MaxHistory caps the stored history and the context window.
	MaxHistory int `yaml:"max_history"`

	// Timeout bounds each provider request attempt.
	Timeout Duration `yaml:"timeout"`

	// Retries is the attempt budget per provider call.
	Retries int `yaml:"retries"`

	// RetryBaseDelay is the exponential-backoff unit.
	RetryBaseDelay Duration `yaml:"retry_base_delay"`

	// Temperature and MaxTokens are the sampling parameters.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// RateLimit throttles outbound provider calls.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Observability configures metrics and tracing.
	Observability ObservabilityConfig `yaml:"observability"`
}

// RateLimitConfig throttles outbound provider calls client-side.
type RateLimitConfig struct {
	// RPS is requests per second; zero disables the limiter.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// ObservabilityConfig configures the metrics server and tracing.
type ObservabilityConfig struct {
	// MetricsPort serves /metrics and /health; zero disables the server.
	MetricsPort int `yaml:"metrics_port"`

	// TracesExporter is "stdout" or "none".
	TracesExporter string `yaml:"traces_exporter"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Provider:       "openai",
		Greeting:       "Hi! I'm your AR companion. What would you like to talk about?",
		SystemPrompt:   "You are a friendly AR puppet companion. Keep replies short and conversational.",
		MaxHistory:     10,
		Timeout:        Duration(30 * time.Second),
		Retries:        3,
		RetryBaseDelay: Duration(time.Second),
		Temperature:    0.7,
		MaxTokens:      1000,
	}
}

// Load reads configuration from a YAML file, overlaying defaults and
// environment variables. An empty path skips the file. A .env file in
// the working directory is honored when present.
func Load(path string) (*Config, error) {
	// Best effort: absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ARBOT_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("ARBOT_API_KEY"); v != "" {
		c.APIKey = v
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "openai":
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		case "claude":
			c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if v := os.Getenv("ARBOT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("ARBOT_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
}

// Validate checks that the configuration can produce a working engine.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "claude":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (or set %s)", keyEnvFor(c.Provider))
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("max_history must be positive")
	}
	if c.Retries <= 0 {
		return fmt.Errorf("retries must be positive")
	}
	return nil
}

func keyEnvFor(provider string) string {
	if provider == "claude" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}
