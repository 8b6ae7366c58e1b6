package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Supabase   SupabaseConfig   `yaml:"supabase" mapstructure:"supabase"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Scraper    ScraperConfig    `yaml:"scraper" mapstructure:"scraper"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Counties   CountiesConfig   `yaml:"counties" mapstructure:"counties"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// SupabaseConfig holds the zoning database REST credentials.
type SupabaseConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	ServiceKey  string `yaml:"service_key" mapstructure:"service_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ExtractionModel string `yaml:"extraction_model" mapstructure:"extraction_model"`
	MaxTokens       int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ScraperConfig holds the AgentQL fallback scraper service settings.
type ScraperConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Key         string `yaml:"key" mapstructure:"key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SearchConfig holds web search settings for portal discovery.
type SearchConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// JinaConfig holds Jina AI Reader settings (render fallback for blocked portals).
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures the three-mode research cascade.
type PipelineConfig struct {
	Mode1TimeoutSecs    int  `yaml:"mode1_timeout_secs" mapstructure:"mode1_timeout_secs"`
	Mode2TimeoutSecs    int  `yaml:"mode2_timeout_secs" mapstructure:"mode2_timeout_secs"`
	Mode3TimeoutSecs    int  `yaml:"mode3_timeout_secs" mapstructure:"mode3_timeout_secs"`
	DiscoveryBudgetSecs int  `yaml:"discovery_budget_secs" mapstructure:"discovery_budget_secs"`
	FetchTimeoutSecs    int  `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	ContentCharLimit    int  `yaml:"content_char_limit" mapstructure:"content_char_limit"`
	PromptCharLimit     int  `yaml:"prompt_char_limit" mapstructure:"prompt_char_limit"`
	CacheTTLHours       int  `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	// SkipPersist runs the cascade without touching the zoning database:
	// no upserts, no escalation records. Used by `run --skip-persist`.
	SkipPersist bool `yaml:"skip_persist" mapstructure:"skip_persist"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCounties int `yaml:"max_concurrent_counties" mapstructure:"max_concurrent_counties"`
}

// CountiesConfig points at the county roster file.
type CountiesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MonitoringConfig configures post-batch health checks and alerting.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	EscalationRateThreshold float64 `yaml:"escalation_rate_threshold" mapstructure:"escalation_rate_threshold"`
	CostLimitUSD            float64 `yaml:"cost_limit_usd" mapstructure:"cost_limit_usd"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZONING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "zoning.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("scraper.key", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.cost_limit_usd", 0.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("supabase.timeout_secs", 30)
	v.SetDefault("anthropic.extraction_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 8000)
	v.SetDefault("scraper.url", "https://zonewise-modal.modal.run")
	v.SetDefault("scraper.timeout_secs", 120)
	v.SetDefault("search.base_url", "https://html.duckduckgo.com")
	v.SetDefault("search.user_agent", "Mozilla/5.0 (compatible; ZoneWiseBot/1.0; +https://zonewise.ai/bot)")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("pipeline.mode1_timeout_secs", 32)
	v.SetDefault("pipeline.mode2_timeout_secs", 95)
	v.SetDefault("pipeline.mode3_timeout_secs", 125)
	v.SetDefault("pipeline.discovery_budget_secs", 28)
	v.SetDefault("pipeline.fetch_timeout_secs", 45)
	v.SetDefault("pipeline.content_char_limit", 80000)
	v.SetDefault("pipeline.prompt_char_limit", 60000)
	v.SetDefault("pipeline.cache_ttl_hours", 24)
	v.SetDefault("pipeline.skip_persist", false)
	v.SetDefault("batch.max_concurrent_counties", 3)
	v.SetDefault("counties.path", "counties.yaml")
	v.SetDefault("monitoring.escalation_rate_threshold", 0.25)
	v.SetDefault("monitoring.lookback_window_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// ValidateForRun checks the keys every research run needs.
func (c *Config) ValidateForRun() error {
	if c.Supabase.URL == "" {
		return eris.New("config: supabase.url is required")
	}
	if c.Supabase.ServiceKey == "" {
		return eris.New("config: supabase.service_key is required")
	}
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
