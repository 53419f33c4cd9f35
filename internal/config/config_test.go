package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SERPER_API_KEY", "")
	t.Setenv("LEADSCOUT_DB", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", cfg.LLM.Provider)
	}
	if cfg.Research.PageBudget != 20 {
		t.Errorf("expected PageBudget=20, got %d", cfg.Research.PageBudget)
	}
	if cfg.Research.PageCharLimit != 10000 {
		t.Errorf("expected PageCharLimit=10000, got %d", cfg.Research.PageCharLimit)
	}
	if cfg.Classify.MaxRounds != 5 {
		t.Errorf("expected MaxRounds=5, got %d", cfg.Classify.MaxRounds)
	}
	if cfg.Search.Provider != "duckduckgo" {
		t.Errorf("expected Search.Provider=duckduckgo, got %s", cfg.Search.Provider)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Research.PageBudget != 20 {
		t.Errorf("expected defaults, got PageBudget=%d", cfg.Research.PageBudget)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
llm:
  provider: gemini
  api_key: g-test
  model: gemini-2.0-flash
research:
  page_budget: 5
icp:
  offering: developer tooling for CI pipelines
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected Provider=gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.Research.PageBudget != 5 {
		t.Errorf("expected PageBudget=5, got %d", cfg.Research.PageBudget)
	}
	// Untouched keys keep their defaults.
	if cfg.Research.PageCharLimit != 10000 {
		t.Errorf("expected PageCharLimit=10000, got %d", cfg.Research.PageCharLimit)
	}
	if cfg.ICP.Offering == "" {
		t.Error("expected ICP offering from file")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm: [not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing API key")
	}

	cfg.LLM.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.LLM.Provider = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown provider")
	}

	cfg.LLM.Provider = "openai"
	cfg.Search.Provider = "serper"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for serper without key")
	}
	cfg.Search.APIKey = "serper-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.Fetch.Provider = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown fetch provider")
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.LLMTimeout(); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
	if got := cfg.FetchTimeout(); got != 20*time.Second {
		t.Errorf("expected 20s, got %v", got)
	}
	if got := cfg.CacheTTL(); got != 24*time.Hour {
		t.Errorf("expected 24h, got %v", got)
	}

	cfg.LLM.Timeout = "not-a-duration"
	if got := cfg.LLMTimeout(); got != 90*time.Second {
		t.Errorf("expected fallback 90s, got %v", got)
	}
	cfg.Cache.FailTTL = "30m"
	if got := cfg.CacheFailTTL(); got != 30*time.Minute {
		t.Errorf("expected 30m, got %v", got)
	}
}
