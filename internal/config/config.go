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
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CrawlConfig configures the crawl run.
type CrawlConfig struct {
	MaxPages           int      `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth           int      `yaml:"max_depth" mapstructure:"max_depth"`
	DelaySecs          float64  `yaml:"delay_secs" mapstructure:"delay_secs"`
	ConcurrentRequests int      `yaml:"concurrent_requests" mapstructure:"concurrent_requests"`
	ContentThreshold   float64  `yaml:"content_threshold" mapstructure:"content_threshold"`
	TimeoutSecs        int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent          string   `yaml:"user_agent" mapstructure:"user_agent"`
	ExcludePaths       []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// AnthropicConfig holds Anthropic API settings for the analysis phase.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// CacheConfig configures the persistent fetch cache.
type CacheConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	TTLSecs int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
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
	v.SetEnvPrefix("SITESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("crawl.max_pages", 1000)
	v.SetDefault("crawl.max_depth", 5)
	v.SetDefault("crawl.delay_secs", 1.0)
	v.SetDefault("crawl.concurrent_requests", 5)
	v.SetDefault("crawl.content_threshold", 0.4)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; SiteScout/1.0)")
	v.SetDefault("crawl.exclude_paths", []string{})
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("cache.path", "sitescout_cache.db")
	v.SetDefault("cache.ttl_secs", 3600)

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
