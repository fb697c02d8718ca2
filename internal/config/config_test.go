package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 200_000, cfg.Reducer.CeilingBytes)
	assert.Equal(t, []string{"encounters", "observations", "medications", "conditions"}, cfg.Reducer.Priority)
	assert.Equal(t, 40, cfg.History.MaxTurns)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.Tools.MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.Tools.InvokeTimeout)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
llm:
  model: gpt-4o
  max_retries: 1
tools:
  max_rounds: 2
upstream:
  provider_search_url: "https://directory.example.com/ProviderSearch"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 1, cfg.LLM.MaxRetries)
	assert.Equal(t, 2, cfg.Tools.MaxRounds)
	assert.Equal(t, "https://directory.example.com/ProviderSearch", cfg.Upstream.ProviderSearchURL)
	// Untouched sections keep their defaults.
	assert.Equal(t, 200_000, cfg.Reducer.CeilingBytes)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"temperature out of range", func(c *Config) { c.LLM.Temperature = 3 }},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }},
		{"tiny ceiling", func(c *Config) { c.Reducer.CeilingBytes = 100 }},
		{"bad priority entry", func(c *Config) { c.Reducer.Priority = []string{"encounters", "observations", "medications", "bogus"} }},
		{"incomplete priority", func(c *Config) { c.Reducer.Priority = []string{"conditions"} }},
		{"zero max rounds", func(c *Config) { c.Tools.MaxRounds = 0 }},
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"bad upstream url", func(c *Config) { c.Upstream.ProviderSearchURL = "not a url" }},
		{"backoff inversion", func(c *Config) {
			c.LLM.InitialBackoff = time.Minute
			c.LLM.MaxBackoff = time.Second
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
