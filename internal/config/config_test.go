package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "zoning.db", cfg.Store.Path)
	assert.Equal(t, 10, cfg.Store.MaxConns)
	assert.Equal(t, 2, cfg.Store.MinConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30, cfg.Supabase.TimeoutSecs)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.ExtractionModel)
	assert.Equal(t, 8000, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "https://zonewise-modal.modal.run", cfg.Scraper.URL)
	assert.Equal(t, 120, cfg.Scraper.TimeoutSecs)
	assert.Equal(t, "https://html.duckduckgo.com", cfg.Search.BaseURL)
	assert.Contains(t, cfg.Search.UserAgent, "ZoneWiseBot")
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, 32, cfg.Pipeline.Mode1TimeoutSecs)
	assert.Equal(t, 95, cfg.Pipeline.Mode2TimeoutSecs)
	assert.Equal(t, 125, cfg.Pipeline.Mode3TimeoutSecs)
	assert.Equal(t, 28, cfg.Pipeline.DiscoveryBudgetSecs)
	assert.Equal(t, 45, cfg.Pipeline.FetchTimeoutSecs)
	assert.Equal(t, 80000, cfg.Pipeline.ContentCharLimit)
	assert.Equal(t, 60000, cfg.Pipeline.PromptCharLimit)
	assert.Equal(t, 24, cfg.Pipeline.CacheTTLHours)
	assert.False(t, cfg.Pipeline.SkipPersist)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentCounties)
	assert.Equal(t, "counties.yaml", cfg.Counties.Path)
	assert.InDelta(t, 0.25, cfg.Monitoring.EscalationRateThreshold, 0.001)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/zoning
log:
  level: debug
  format: console
batch:
  max_concurrent_counties: 5
pipeline:
  mode2_timeout_secs: 120
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/zoning", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentCounties)
	assert.Equal(t, 120, cfg.Pipeline.Mode2TimeoutSecs)
	// Defaults still apply for unset values
	assert.Equal(t, 32, cfg.Pipeline.Mode1TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ZONING_STORE_DRIVER", "postgres")
	t.Setenv("ZONING_LOG_LEVEL", "warn")
	t.Setenv("ZONING_SUPABASE_URL", "https://xyz.supabase.co")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "https://xyz.supabase.co", cfg.Supabase.URL)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ZONING_BATCH_MAX_CONCURRENT_COUNTIES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Batch.MaxConcurrentCounties)
}

func TestValidateForRun(t *testing.T) {
	cfg := &Config{}
	cfg.Supabase.URL = "https://xyz.supabase.co"
	cfg.Supabase.ServiceKey = "service-key"
	cfg.Anthropic.Key = "sk-ant-key"

	assert.NoError(t, cfg.ValidateForRun())
}

func TestValidateForRunMissingKeys(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"no supabase url", func(c *Config) { c.Supabase.URL = "" }, "supabase.url"},
		{"no service key", func(c *Config) { c.Supabase.ServiceKey = "" }, "supabase.service_key"},
		{"no anthropic key", func(c *Config) { c.Anthropic.Key = "" }, "anthropic.key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Supabase.URL = "https://xyz.supabase.co"
			cfg.Supabase.ServiceKey = "service-key"
			cfg.Anthropic.Key = "sk-ant-key"
			tt.mut(cfg)

			err := cfg.ValidateForRun()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
