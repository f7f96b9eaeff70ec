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
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Backoff   BackoffConfig   `yaml:"backoff" mapstructure:"backoff"`
	Columns   ColumnsConfig   `yaml:"columns" mapstructure:"columns"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the resolution cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds the structured-source credentials.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig selects and configures the web-search fallback provider.
type SearchConfig struct {
	// Provider is serpapi, bing, or empty to disable the fallback tier.
	Provider string `yaml:"provider" mapstructure:"provider"`
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
}

// ResolveConfig controls matching and scheduling.
type ResolveConfig struct {
	Confidence  float64 `yaml:"confidence" mapstructure:"confidence"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	FlushEvery  int     `yaml:"flush_every" mapstructure:"flush_every"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// RateLimitConfig sets per-source-class request budgets in requests/sec.
type RateLimitConfig struct {
	Places    float64 `yaml:"places" mapstructure:"places"`
	WebSearch float64 `yaml:"web_search" mapstructure:"web_search"`
}

// BackoffConfig sets the shared throttle backoff schedule.
type BackoffConfig struct {
	BaseMS     int `yaml:"base_ms" mapstructure:"base_ms"`
	MaxMS      int `yaml:"max_ms" mapstructure:"max_ms"`
	ResetAfter int `yaml:"reset_after" mapstructure:"reset_after"`
}

// ColumnsConfig overrides input header auto-detection.
type ColumnsConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Address string `yaml:"address" mapstructure:"address"`
	City    string `yaml:"city" mapstructure:"city"`
	State   string `yaml:"state" mapstructure:"state"`
	Zip     string `yaml:"zip" mapstructure:"zip"`
	Permit  string `yaml:"permit" mapstructure:"permit"`
}

// ServerConfig configures the HTTP resolve server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("MOTELS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "resolver_cache.db")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("resolve.confidence", 0.75)
	v.SetDefault("resolve.concurrency", 4)
	v.SetDefault("resolve.flush_every", 50)
	v.SetDefault("resolve.max_attempts", 3)
	v.SetDefault("rate_limit.places", 5)
	v.SetDefault("rate_limit.web_search", 5)
	v.SetDefault("backoff.base_ms", 500)
	v.SetDefault("backoff.max_ms", 30000)
	v.SetDefault("backoff.reset_after", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
