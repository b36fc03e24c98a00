package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// headerValue looks a header up case-insensitively, as viper may fold map keys
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Cache.Dir != "./data/cache" {
			t.Errorf("Cache.Dir = %s, want ./data/cache", cfg.Cache.Dir)
		}
		if cfg.Cache.MemoryRetention != 24*time.Hour {
			t.Errorf("Cache.MemoryRetention = %v, want 24h", cfg.Cache.MemoryRetention)
		}
		if cfg.Sources.Rate.URL != "https://lirarate.org/" {
			t.Errorf("Sources.Rate.URL = %s, want https://lirarate.org/", cfg.Sources.Rate.URL)
		}
		if cfg.Sources.Rate.FreshTTL != 120*time.Second {
			t.Errorf("Sources.Rate.FreshTTL = %v, want 2m", cfg.Sources.Rate.FreshTTL)
		}
		if cfg.Sources.Rate.Backoff != "exponential" {
			t.Errorf("Sources.Rate.Backoff = %s, want exponential", cfg.Sources.Rate.Backoff)
		}
		if cfg.Sources.EUR.URL != "https://api.exchangerate-api.com/v4/latest/USD" {
			t.Errorf("Sources.EUR.URL = %s, want the exchangerate-api USD feed", cfg.Sources.EUR.URL)
		}
		if cfg.Sources.EUR.Timeout != 5*time.Second {
			t.Errorf("Sources.EUR.Timeout = %v, want 5s", cfg.Sources.EUR.Timeout)
		}
		if cfg.Sources.Fuel.StaleTTL != time.Hour {
			t.Errorf("Sources.Fuel.StaleTTL = %v, want 1h", cfg.Sources.Fuel.StaleTTL)
		}
		if got := cfg.Sources.Lotto.URLs(); len(got) != 2 {
			t.Errorf("Sources.Lotto.URLs() = %v, want home page and results page", got)
		}
		if cfg.Sources.Gold.MaxAttempts != 3 {
			t.Errorf("Sources.Gold.MaxAttempts = %d, want 3", cfg.Sources.Gold.MaxAttempts)
		}
		if headerValue(cfg.Sources.Gold.Headers, "X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("Sources.Gold.Headers = %v, want X-Requested-With", cfg.Sources.Gold.Headers)
		}
		if !cfg.History.Enabled || cfg.History.Retention != 720*time.Hour {
			t.Errorf("History = %+v, want enabled with 720h retention", cfg.History)
		}
		if cfg.Scheduler.Interval != 5*time.Minute {
			t.Errorf("Scheduler.Interval = %v, want 5m", cfg.Scheduler.Interval)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
			t.Errorf("Log = %+v, want info/text", cfg.Log)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("LEBANONRATES_SERVER_PORT", "9090")
		t.Setenv("LEBANONRATES_SERVER_ENVIRONMENT", "production")
		t.Setenv("LEBANONRATES_SOURCES_RATE_URL", "https://rates.example.com/")
		t.Setenv("LEBANONRATES_SOURCES_RATE_FRESH_TTL", "30s")
		t.Setenv("LEBANONRATES_SOURCES_FUEL_MAX_ATTEMPTS", "5")
		t.Setenv("LEBANONRATES_SOURCES_GOLD_BACKOFF", "fixed")
		t.Setenv("LEBANONRATES_HISTORY_ENABLED", "false")
		t.Setenv("LEBANONRATES_SCHEDULER_INTERVAL", "0s")
		t.Setenv("LEBANONRATES_LOG_FORMAT", "json")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.Sources.Rate.URL != "https://rates.example.com/" {
			t.Errorf("Sources.Rate.URL = %s, want https://rates.example.com/", cfg.Sources.Rate.URL)
		}
		if cfg.Sources.Rate.FreshTTL != 30*time.Second {
			t.Errorf("Sources.Rate.FreshTTL = %v, want 30s", cfg.Sources.Rate.FreshTTL)
		}
		if cfg.Sources.Fuel.MaxAttempts != 5 {
			t.Errorf("Sources.Fuel.MaxAttempts = %d, want 5", cfg.Sources.Fuel.MaxAttempts)
		}
		if cfg.Sources.Gold.Backoff != "fixed" {
			t.Errorf("Sources.Gold.Backoff = %s, want fixed", cfg.Sources.Gold.Backoff)
		}
		if cfg.History.Enabled {
			t.Error("History.Enabled = true, want false")
		}
		if cfg.Scheduler.Interval != 0 {
			t.Errorf("Scheduler.Interval = %v, want 0", cfg.Scheduler.Interval)
		}
		if cfg.Log.Format != "json" {
			t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
		}
	})

	t.Run("loads values from a config file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		content := `
server:
  port: "7070"
sources:
  fuel:
    url: https://fuel.example.com/
    stale_ttl: 2h
`
		if err := os.WriteFile("config.yaml", []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Server.Port != "7070" {
			t.Errorf("Server.Port = %s, want 7070", cfg.Server.Port)
		}
		if cfg.Sources.Fuel.URL != "https://fuel.example.com/" {
			t.Errorf("Sources.Fuel.URL = %s, want https://fuel.example.com/", cfg.Sources.Fuel.URL)
		}
		if cfg.Sources.Fuel.StaleTTL != 2*time.Hour {
			t.Errorf("Sources.Fuel.StaleTTL = %v, want 2h", cfg.Sources.Fuel.StaleTTL)
		}
		if cfg.Sources.Fuel.FreshTTL != 5*time.Minute {
			t.Errorf("Sources.Fuel.FreshTTL = %v, want default 5m", cfg.Sources.Fuel.FreshTTL)
		}
	})

	t.Run("fails validation for invalid backoff", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("LEBANONRATES_SOURCES_LOTTO_BACKOFF", "random")

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want error for invalid backoff")
		}
		if !strings.Contains(err.Error(), "source lotto") {
			t.Errorf("Load() error = %v, want it to name the lotto source", err)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		t.Chdir(t.TempDir())

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		t.Chdir(t.TempDir())

		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2

# Another comment
TEST_VAR_3=value3
`
		if err := os.WriteFile(".env", []byte(envContent), 0o644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		for _, name := range []string{"TEST_VAR_1", "TEST_VAR_2", "TEST_VAR_3"} {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Unsetenv(name) })
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_VAR_3") != "value3" {
			t.Errorf("TEST_VAR_3 = %s, want value3", os.Getenv("TEST_VAR_3"))
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("TEST_OVERRIDE", "existing-value")

		if err := os.WriteFile(".env", []byte("TEST_OVERRIDE=new-value"), 0o644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})

	t.Run("env file feeds Load", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("LEBANONRATES_SERVER_PORT", "")
		os.Unsetenv("LEBANONRATES_SERVER_PORT")

		if err := os.WriteFile(".env", []byte("LEBANONRATES_SERVER_PORT=6060\n"), 0o644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Server.Port != "6060" {
			t.Errorf("Server.Port = %s, want 6060", cfg.Server.Port)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		source := SourceConfig{
			URL:         "https://example.com/",
			FreshTTL:    time.Minute,
			StaleTTL:    10 * time.Minute,
			MaxAttempts: 3,
			Backoff:     "fixed",
		}
		return &Config{
			Server:  ServerConfig{Port: "8080"},
			Sources: SourcesConfig{Rate: source, EUR: source, Fuel: source, Lotto: source, Gold: source},
			History: HistoryConfig{Enabled: true, Path: "./data/history.db"},
			Log:     LogConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid configuration", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "missing source url", mutate: func(c *Config) { c.Sources.Fuel.URL = "" }, wantErr: true},
		{name: "fallback url is enough", mutate: func(c *Config) {
			c.Sources.Lotto.URL = ""
			c.Sources.Lotto.FallbackURLs = []string{"https://example.com/results"}
		}},
		{name: "zero fresh ttl", mutate: func(c *Config) { c.Sources.Rate.FreshTTL = 0 }, wantErr: true},
		{name: "missing eur url", mutate: func(c *Config) { c.Sources.EUR.URL = "" }, wantErr: true},
		{name: "stale shorter than fresh", mutate: func(c *Config) { c.Sources.Gold.StaleTTL = time.Second }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.Sources.Rate.MaxAttempts = 0 }, wantErr: true},
		{name: "history without path", mutate: func(c *Config) { c.History.Path = "" }, wantErr: true},
		{name: "history disabled without path", mutate: func(c *Config) {
			c.History.Enabled = false
			c.History.Path = ""
		}},
		{name: "negative interval", mutate: func(c *Config) { c.Scheduler.Interval = -time.Second }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
