package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	History   HistoryConfig   `mapstructure:"history"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Dir             string        `mapstructure:"dir"` // durable cache directory, empty disables it
	MemoryRetention time.Duration `mapstructure:"memory_retention"`
}

// SourcesConfig holds one entry per upstream source
type SourcesConfig struct {
	Rate  SourceConfig `mapstructure:"rate"`
	EUR   SourceConfig `mapstructure:"eur"` // EUR per USD feed, combined with the rate source
	Fuel  SourceConfig `mapstructure:"fuel"`
	Lotto SourceConfig `mapstructure:"lotto"`
	Gold  SourceConfig `mapstructure:"gold"`
}

// SourceConfig holds fetch, cache and retry settings of one upstream source
type SourceConfig struct {
	URL               string            `mapstructure:"url"`
	FallbackURLs      []string          `mapstructure:"fallback_urls"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	FreshTTL          time.Duration     `mapstructure:"fresh_ttl"`
	StaleTTL          time.Duration     `mapstructure:"stale_ttl"`
	MaxAttempts       uint              `mapstructure:"max_attempts"`
	RetryDelay        time.Duration     `mapstructure:"retry_delay"`
	Backoff           string            `mapstructure:"backoff"` // "fixed", "linear" or "exponential"
	RequestsPerMinute int               `mapstructure:"requests_per_minute"`
	Headers           map[string]string `mapstructure:"headers"`
}

// URLs returns the primary URL followed by the fallbacks
func (s SourceConfig) URLs() []string {
	urls := make([]string, 0, 1+len(s.FallbackURLs))
	if s.URL != "" {
		urls = append(urls, s.URL)
	}
	return append(urls, s.FallbackURLs...)
}

// HistoryConfig holds gold price history configuration
type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// SchedulerConfig holds periodic refresh configuration
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables the scheduler
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lebanonrates/")

	// LEBANONRATES_SOURCES_RATE_URL overrides sources.rate.url
	v.SetEnvPrefix("LEBANONRATES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Cache defaults
	v.SetDefault("cache.dir", "./data/cache")
	v.SetDefault("cache.memory_retention", "24h")

	// Source defaults
	setSourceDefaults(v, "rate", SourceConfig{
		URL:         "https://lirarate.org/",
		Timeout:     25 * time.Second,
		FreshTTL:    120 * time.Second,
		StaleTTL:    30 * time.Minute,
		MaxAttempts: 3,
		RetryDelay:  5 * time.Second,
		Backoff:     "exponential",
	})
	setSourceDefaults(v, "eur", SourceConfig{
		URL:         "https://api.exchangerate-api.com/v4/latest/USD",
		Timeout:     5 * time.Second,
		FreshTTL:    time.Hour,
		StaleTTL:    12 * time.Hour,
		MaxAttempts: 2,
		RetryDelay:  2 * time.Second,
		Backoff:     "fixed",
	})
	setSourceDefaults(v, "fuel", SourceConfig{
		URL:         "https://medco.com.lb/",
		Timeout:     10 * time.Second,
		FreshTTL:    5 * time.Minute,
		StaleTTL:    time.Hour,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		Backoff:     "fixed",
	})
	setSourceDefaults(v, "lotto", SourceConfig{
		URL:          "https://www.lldj.com/",
		FallbackURLs: []string{"https://www.lldj.com/en/LatestResults/Loto"},
		Timeout:      10 * time.Second,
		FreshTTL:     60 * time.Second,
		StaleTTL:     10 * time.Minute,
		MaxAttempts:  3,
		RetryDelay:   2 * time.Second,
		Backoff:      "fixed",
	})
	setSourceDefaults(v, "gold", SourceConfig{
		URL:         "https://lebanor.com/home/price_ajax",
		Timeout:     15 * time.Second,
		FreshTTL:    60 * time.Second,
		StaleTTL:    10 * time.Minute,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		Backoff:     "linear",
		Headers: map[string]string{
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"Referer":          "https://lebanor.com/",
			"Origin":           "https://lebanor.com",
			"X-Requested-With": "XMLHttpRequest",
		},
	})

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "./data/history.db")
	v.SetDefault("history.retention", "720h") // 30 days

	// Scheduler defaults
	v.SetDefault("scheduler.interval", "5m")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func setSourceDefaults(v *viper.Viper, name string, s SourceConfig) {
	prefix := "sources." + name + "."
	v.SetDefault(prefix+"url", s.URL)
	v.SetDefault(prefix+"fallback_urls", s.FallbackURLs)
	v.SetDefault(prefix+"timeout", s.Timeout)
	v.SetDefault(prefix+"fresh_ttl", s.FreshTTL)
	v.SetDefault(prefix+"stale_ttl", s.StaleTTL)
	v.SetDefault(prefix+"max_attempts", s.MaxAttempts)
	v.SetDefault(prefix+"retry_delay", s.RetryDelay)
	v.SetDefault(prefix+"backoff", s.Backoff)
	v.SetDefault(prefix+"requests_per_minute", 30)
	if s.Headers != nil {
		v.SetDefault(prefix+"headers", s.Headers)
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	sources := map[string]SourceConfig{
		"rate":  config.Sources.Rate,
		"eur":   config.Sources.EUR,
		"fuel":  config.Sources.Fuel,
		"lotto": config.Sources.Lotto,
		"gold":  config.Sources.Gold,
	}
	for _, name := range []string{"rate", "eur", "fuel", "lotto", "gold"} {
		if err := validateSource(name, sources[name]); err != nil {
			return err
		}
	}

	if config.History.Enabled && config.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}
	if config.Scheduler.Interval < 0 {
		return fmt.Errorf("scheduler interval must not be negative, got: %s", config.Scheduler.Interval)
	}

	switch strings.ToLower(config.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}

func validateSource(name string, s SourceConfig) error {
	if len(s.URLs()) == 0 {
		return fmt.Errorf("source %s: url is required (set LEBANONRATES_SOURCES_%s_URL)", name, strings.ToUpper(name))
	}
	if s.FreshTTL <= 0 {
		return fmt.Errorf("source %s: fresh_ttl must be positive", name)
	}
	if s.StaleTTL < s.FreshTTL {
		return fmt.Errorf("source %s: stale_ttl must not be shorter than fresh_ttl", name)
	}
	if s.MaxAttempts == 0 {
		return fmt.Errorf("source %s: max_attempts must be at least 1", name)
	}
	switch s.Backoff {
	case "fixed", "linear", "exponential":
	default:
		return fmt.Errorf("source %s: backoff must be 'fixed', 'linear' or 'exponential', got: %s", name, s.Backoff)
	}
	return nil
}

// loadEnvFile exports variables from a .env file in the working directory.
// Variables already present in the environment win.
func loadEnvFile() error {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}
