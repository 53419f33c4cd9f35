// Package config loads leadscout configuration: YAML file over defaults,
// environment variables over both.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all leadscout configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Research ResearchConfig `yaml:"research"`
	Classify ClassifyConfig `yaml:"classify"`
	ICP      ICPConfig      `yaml:"icp"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
	Trace    TraceConfig    `yaml:"trace"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LLMConfig configures the reasoning service.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	// Slots bounds reasoning calls in flight across all concurrent leads.
	Slots int `yaml:"slots"`
}

// SearchConfig picks the web search backend.
type SearchConfig struct {
	Provider string `yaml:"provider"` // serper, duckduckgo
	APIKey   string `yaml:"api_key"`
}

// FetchConfig picks the page fetcher.
type FetchConfig struct {
	Provider string `yaml:"provider"` // http, browser
	Timeout  string `yaml:"timeout"`
}

// ResearchConfig bounds one lead's research loop.
type ResearchConfig struct {
	PageBudget      int `yaml:"page_budget"`
	PageCharLimit   int `yaml:"page_char_limit"`
	ConcurrentFetch int `yaml:"concurrent_fetch"`
	QueryAttempts   int `yaml:"query_attempts"`
	URLAttempts     int `yaml:"url_attempts"`
}

// ClassifyConfig bounds classification and batch processing.
type ClassifyConfig struct {
	MaxRounds int `yaml:"max_rounds"`
	// Concurrency is how many leads a batch runs in parallel.
	Concurrency int `yaml:"concurrency"`
}

// ICPConfig describes what is being sold and to whom; both strings are
// embedded verbatim in classification prompts.
type ICPConfig struct {
	Offering string `yaml:"offering"`
	Profile  string `yaml:"profile"`
}

// CacheConfig configures the fetch cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	TTL     string `yaml:"ttl"`
	FailTTL string `yaml:"fail_ttl"`
}

// StorageConfig locates the run archive.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// TraceConfig controls per-run JSONL traces.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "90s",
			Slots:    1,
		},
		Search: SearchConfig{
			Provider: "duckduckgo",
		},
		Fetch: FetchConfig{
			Provider: "http",
			Timeout:  "20s",
		},
		Research: ResearchConfig{
			PageBudget:      20,
			PageCharLimit:   10000,
			ConcurrentFetch: 2,
			QueryAttempts:   2,
			URLAttempts:     2,
		},
		Classify: ClassifyConfig{
			MaxRounds:   5,
			Concurrency: 4,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "data/cache",
			TTL:     "24h",
			FailTTL: "1h",
		},
		Storage: StorageConfig{
			DatabasePath: "data/leadscout.db",
		},
		Trace: TraceConfig{
			Dir: "data/traces",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, layered over defaults. A missing
// file is not an error; the defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	if key := os.Getenv("SERPER_API_KEY"); key != "" {
		c.Search.APIKey = key
		c.Search.Provider = "serper"
	}

	if path := os.Getenv("LEADSCOUT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

// LLMTimeout returns the reasoning call timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// FetchTimeout returns the per-page fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// CacheTTL returns how long fetched pages stay fresh.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// CacheFailTTL returns how long fetch failures are remembered.
func (c *Config) CacheFailTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.FailTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// ValidLLMProviders lists supported reasoning backends.
var ValidLLMProviders = []string{"openai", "gemini"}

// Validate checks the parts of the config a run cannot proceed without.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or GEMINI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidLLMProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidLLMProviders)
	}

	switch c.Search.Provider {
	case "serper":
		if c.Search.APIKey == "" {
			return fmt.Errorf("search provider serper requires an API key (set SERPER_API_KEY)")
		}
	case "duckduckgo":
	default:
		return fmt.Errorf("invalid search provider: %s (valid: [serper duckduckgo])", c.Search.Provider)
	}

	switch c.Fetch.Provider {
	case "http", "browser":
	default:
		return fmt.Errorf("invalid fetch provider: %s (valid: [http browser])", c.Fetch.Provider)
	}

	return nil
}
