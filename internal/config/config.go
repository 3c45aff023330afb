// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the single immutable configuration struct for the engine. It is
// resolved once at construction; nothing downstream re-reads viper or sprinkles
// its own defaults across call sites.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Observer ObserverConfig `mapstructure:"observer" yaml:"observer"`
	Intent   IntentConfig   `mapstructure:"intent" yaml:"intent"`
	Locator  LocatorConfig  `mapstructure:"locator" yaml:"locator"`
	Action   ActionConfig   `mapstructure:"action" yaml:"action"`
}

// LoggerConfig mirrors what the observability package needs to bootstrap zap.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// CacheConfig bounds the indexed node cache.
type CacheConfig struct {
	MaxEntries          int           `mapstructure:"max_entries" yaml:"max_entries"`
	MaxQueryResults     int           `mapstructure:"max_query_results" yaml:"max_query_results"`
	MaxAge              time.Duration `mapstructure:"max_age" yaml:"max_age"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
}

// ObserverConfig tunes mutation batching.
type ObserverConfig struct {
	BatchWindow time.Duration `mapstructure:"batch_window" yaml:"batch_window"`
	QueueSize   int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// IntentConfig tunes fuzzy intent resolution.
type IntentConfig struct {
	MaxResults      int `mapstructure:"max_results" yaml:"max_results"`
	RecencyFallback int `mapstructure:"recency_fallback" yaml:"recency_fallback"`
}

// LocatorConfig tunes the strategy-chain resolver.
type LocatorConfig struct {
	HighConfidence float64       `mapstructure:"high_confidence" yaml:"high_confidence"`
	Retries        int           `mapstructure:"retries" yaml:"retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ActionConfig tunes the execution state machine and its input pacing.
type ActionConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ReadyPoll      time.Duration `mapstructure:"ready_poll" yaml:"ready_poll"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	KeyDelay       time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
	ClickHold      time.Duration `mapstructure:"click_hold" yaml:"click_hold"`
	VerifySnapshot bool          `mapstructure:"verify_snapshot" yaml:"verify_snapshot"`
}

// SetDefaults initializes default values for every knob. Every key the engine
// reads appears here, so a bare viper instance still yields a working config.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagesense")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Cache --
	v.SetDefault("cache.max_entries", 500)
	v.SetDefault("cache.max_query_results", 10)
	v.SetDefault("cache.max_age", "5m")
	v.SetDefault("cache.sweep_interval", "30s")
	v.SetDefault("cache.similarity_threshold", 0.72)

	// -- Observer --
	v.SetDefault("observer.batch_window", "25ms")
	v.SetDefault("observer.queue_size", 1024)

	// -- Intent --
	v.SetDefault("intent.max_results", 5)
	v.SetDefault("intent.recency_fallback", 5)

	// -- Locator --
	v.SetDefault("locator.high_confidence", 0.85)
	v.SetDefault("locator.retries", 3)
	v.SetDefault("locator.retry_backoff", "100ms")
	v.SetDefault("locator.timeout", "5s")

	// -- Action --
	v.SetDefault("action.timeout", "10s")
	v.SetDefault("action.ready_poll", "50ms")
	v.SetDefault("action.settle_delay", "30ms")
	v.SetDefault("action.key_delay", "5ms")
	v.SetDefault("action.click_hold", "20ms")
	v.SetDefault("action.verify_snapshot", true)
}

// NewDefaultConfig returns a configuration populated purely from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults always unmarshal; anything else is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds a validated configuration from a caller-prepared
// viper instance (config file and flags already bound).
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.MaxQueryResults <= 0 {
		return fmt.Errorf("cache.max_query_results must be positive, got %d", c.Cache.MaxQueryResults)
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in [0,1], got %f", c.Cache.SimilarityThreshold)
	}
	if c.Observer.BatchWindow <= 0 {
		return fmt.Errorf("observer.batch_window must be positive, got %s", c.Observer.BatchWindow)
	}
	if c.Locator.HighConfidence <= 0 || c.Locator.HighConfidence > 1 {
		return fmt.Errorf("locator.high_confidence must be in (0,1], got %f", c.Locator.HighConfidence)
	}
	if c.Action.Timeout <= 0 {
		return fmt.Errorf("action.timeout must be positive, got %s", c.Action.Timeout)
	}
	return nil
}
