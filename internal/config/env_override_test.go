package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("OPENAI_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("OPENAI_API_KEY does not override existing provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "")

		cfg := &Config{LLM: LLMConfig{Provider: "custom"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "custom", cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY overrides provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := &Config{LLM: LLMConfig{Provider: "openai"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "g-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("GEMINI wins over OPENAI when both set", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "g-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})
}

func TestEnvOverrides_Search(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "serper-key")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "serper", cfg.Search.Provider)
	assert.Equal(t, "serper-key", cfg.Search.APIKey)
}

func TestEnvOverrides_Storage(t *testing.T) {
	t.Setenv("LEADSCOUT_DB", "/tmp/other.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/other.db", cfg.Storage.DatabasePath)
}
