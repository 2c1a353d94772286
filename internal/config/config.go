package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance. An explicit path takes precedence
// over the default search locations.
func New(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/reply-intel/")
		v.AddConfigPath("$HOME/.reply-intel")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("REPLY_INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults
	v.SetDefault("llm.provider", "anthropic")

	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model_name", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 300)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.max_body_size", 4096)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 300)
	v.SetDefault("bedrock.temperature", 0.0)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 300)
	v.SetDefault("gemini.temperature", 0.0)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 15)
	v.SetDefault("pipeline.deadline", "30m")
	v.SetDefault("pipeline.lookback_days", 7)
	v.SetDefault("pipeline.dry_run", false)

	// Pagination defaults
	v.SetDefault("pagination.max_attempts", 4)
	v.SetDefault("pagination.initial_backoff", "1s")
	v.SetDefault("pagination.max_backoff", "30s")
	v.SetDefault("pagination.max_jitter", "500ms")
	v.SetDefault("pagination.max_pages", 500)

	// Semantic classification defaults
	v.SetDefault("semantic.concurrency", 4)
	v.SetDefault("semantic.rate_per_second", 2.0)
	v.SetDefault("semantic.burst", 2)

	// Timing validation defaults
	v.SetDefault("timing.threshold", "5m")

	// Platform defaults
	v.SetDefault("platforms.instantly.base_url", "https://api.instantly.ai")
	v.SetDefault("platforms.instantly.page_size", 100)
	v.SetDefault("platforms.instantly.strategy", "cursor")
	v.SetDefault("platforms.instantly.rate_per_second", 5.0)
	v.SetDefault("platforms.instantly.burst", 5)
	v.SetDefault("platforms.instantly.timeout", "30s")
	v.SetDefault("platforms.bison.base_url", "https://send.leadgenjay.com")
	v.SetDefault("platforms.bison.page_size", 15)
	v.SetDefault("platforms.bison.strategy", "cursor")
	v.SetDefault("platforms.bison.rate_per_second", 3.0)
	v.SetDefault("platforms.bison.burst", 3)
	v.SetDefault("platforms.bison.timeout", "30s")

	// Workspace source defaults
	v.SetDefault("workspaces.source", "file")
	v.SetDefault("workspaces.file", "./configs/workspaces.yaml")
	v.SetDefault("workspaces.sheets.spreadsheet_id", "")
	v.SetDefault("workspaces.sheets.range", "Workspaces!A2:E")
	v.SetDefault("workspaces.sheets.credentials_file", "")
	v.SetDefault("workspaces.sheets.api_key", "")

	// Sender defaults
	v.SetDefault("senders.internal_domains", []string{})
	v.SetDefault("senders.system_locals", []string{"noreply", "no-reply", "donotreply", "do-not-reply", "mailer-daemon", "postmaster"})

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "168h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/verdict_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/reply_intel")

	// Report defaults
	v.SetDefault("report.format", "text")
	v.SetDefault("report.verbose", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
