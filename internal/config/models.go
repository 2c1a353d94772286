package config

import (
	"fmt"
	"time"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// AnthropicConfig represents the configuration for the Anthropic Messages API
type AnthropicConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float64
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// PipelineConfig controls the fan-out over workspaces
type PipelineConfig struct {
	Workers      int
	Deadline     time.Duration
	LookbackDays int
	DryRun       bool
}

// PaginationConfig controls page retries and guards
type PaginationConfig struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxJitter      time.Duration
	MaxPages       int
}

// SemanticConfig controls concurrent classification calls
type SemanticConfig struct {
	Concurrency   int
	RatePerSecond float64
	Burst         int
}

// PlatformConfig represents one outreach platform's API settings
type PlatformConfig struct {
	BaseURL       string
	PageSize      int
	Strategy      string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// SheetsConfig locates the workspace spreadsheet
type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	APIKey          string
}

// WorkspacesConfig selects where workspace credentials come from
type WorkspacesConfig struct {
	Source string
	File   string
	Sheets SheetsConfig
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetAnthropic returns the Anthropic configuration
func (c *Config) GetAnthropic() AnthropicConfig {
	return AnthropicConfig{
		APIKey:      c.GetString("anthropic.api_key"),
		ModelName:   c.GetString("anthropic.model_name"),
		MaxTokens:   c.GetInt("anthropic.max_tokens"),
		Temperature: c.GetFloat64("anthropic.temperature"),
		MaxBodySize: c.GetInt("anthropic.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() (PipelineConfig, error) {
	deadline, err := c.GetDuration("pipeline.deadline")
	if err != nil {
		return PipelineConfig{}, err
	}
	return PipelineConfig{
		Workers:      c.GetInt("pipeline.workers"),
		Deadline:     deadline,
		LookbackDays: c.GetInt("pipeline.lookback_days"),
		DryRun:       c.GetBool("pipeline.dry_run"),
	}, nil
}

// GetPagination returns the pagination configuration
func (c *Config) GetPagination() (PaginationConfig, error) {
	initial, err := c.GetDuration("pagination.initial_backoff")
	if err != nil {
		return PaginationConfig{}, err
	}
	maxBackoff, err := c.GetDuration("pagination.max_backoff")
	if err != nil {
		return PaginationConfig{}, err
	}
	jitter, err := c.GetDuration("pagination.max_jitter")
	if err != nil {
		return PaginationConfig{}, err
	}
	attempts := c.GetInt("pagination.max_attempts")
	if attempts < 1 {
		attempts = 1
	}
	return PaginationConfig{
		MaxAttempts:    uint(attempts),
		InitialBackoff: initial,
		MaxBackoff:     maxBackoff,
		MaxJitter:      jitter,
		MaxPages:       c.GetInt("pagination.max_pages"),
	}, nil
}

// GetSemantic returns the semantic classification configuration
func (c *Config) GetSemantic() SemanticConfig {
	return SemanticConfig{
		Concurrency:   c.GetInt("semantic.concurrency"),
		RatePerSecond: c.GetFloat64("semantic.rate_per_second"),
		Burst:         c.GetInt("semantic.burst"),
	}
}

// GetTimingThreshold returns the minimum plausible human response time
func (c *Config) GetTimingThreshold() (time.Duration, error) {
	return c.GetDuration("timing.threshold")
}

// GetPlatform returns the API settings for the named platform
func (c *Config) GetPlatform(name string) (PlatformConfig, error) {
	prefix := "platforms." + name
	if !c.v.IsSet(prefix + ".base_url") {
		return PlatformConfig{}, fmt.Errorf("unsupported platform: %s", name)
	}
	timeout, err := c.GetDuration(prefix + ".timeout")
	if err != nil {
		return PlatformConfig{}, err
	}
	return PlatformConfig{
		BaseURL:       c.GetString(prefix + ".base_url"),
		PageSize:      c.GetInt(prefix + ".page_size"),
		Strategy:      c.GetString(prefix + ".strategy"),
		RatePerSecond: c.GetFloat64(prefix + ".rate_per_second"),
		Burst:         c.GetInt(prefix + ".burst"),
		Timeout:       timeout,
	}, nil
}

// GetWorkspaces returns the workspace source configuration
func (c *Config) GetWorkspaces() WorkspacesConfig {
	return WorkspacesConfig{
		Source: c.GetString("workspaces.source"),
		File:   c.GetString("workspaces.file"),
		Sheets: SheetsConfig{
			SpreadsheetID:   c.GetString("workspaces.sheets.spreadsheet_id"),
			Range:           c.GetString("workspaces.sheets.range"),
			CredentialsFile: c.GetString("workspaces.sheets.credentials_file"),
			APIKey:          c.GetString("workspaces.sheets.api_key"),
		},
	}
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// GetCache returns the verdict cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}, nil
}

// ReportConfig controls how run results are printed
type ReportConfig struct {
	Format  string
	Verbose bool
}

// GetReport returns the report configuration
func (c *Config) GetReport() ReportConfig {
	return ReportConfig{
		Format:  c.GetString("report.format"),
		Verbose: c.GetBool("report.verbose"),
	}
}

// GetSenders returns the global internal domains and system mailbox names
func (c *Config) GetSenders() (domains, systemLocals []string) {
	return c.GetStringSlice("senders.internal_domains"), c.GetStringSlice("senders.system_locals")
}
