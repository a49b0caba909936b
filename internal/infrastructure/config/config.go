package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App   AppConfig
	Log   LogConfig
	HTTP  HTTPConfig
	ERP   ERPConfig
	Rates RatesConfig
	Cache CacheConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
}

// ERPConfig holds the remote ERP connection settings
type ERPConfig struct {
	BaseURL    string        // e.g. "https://erp.example.com"
	Database   string        // ERP database name
	UID        int64         // ERP user id used for reads
	APIKey     string        // API key paired with UID
	Timeout    time.Duration // per-call HTTP timeout
	BatchLimit int           // cap for bulk order reads
}

// RatesConfig holds the exchange-rate provider settings
type RatesConfig struct {
	SeriesURL    string        // public USD->local time-series endpoint
	TTL          time.Duration // snapshot lifetime
	FallbackRate float64       // used when no fetch ever succeeded
	UTCOffset    int           // business timezone as fixed UTC offset hours
	Timeout      time.Duration
}

// CacheConfig holds result-cache settings
type CacheConfig struct {
	OverviewTTL time.Duration
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PROCWATCH_ prefix (e.g. PROCWATCH_ERP_APIKEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PROCWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		ERP: ERPConfig{
			BaseURL:    v.GetString("erp.base_url"),
			Database:   v.GetString("erp.database"),
			UID:        v.GetInt64("erp.uid"),
			APIKey:     v.GetString("erp.api_key"),
			Timeout:    v.GetDuration("erp.timeout"),
			BatchLimit: v.GetInt("erp.batch_limit"),
		},
		Rates: RatesConfig{
			SeriesURL:    v.GetString("rates.series_url"),
			TTL:          v.GetDuration("rates.ttl"),
			FallbackRate: v.GetFloat64("rates.fallback_rate"),
			UTCOffset:    v.GetInt("rates.utc_offset"),
			Timeout:      v.GetDuration("rates.timeout"),
		},
		Cache: CacheConfig{
			OverviewTTL: v.GetDuration("cache.overview_ttl"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "procwatch")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)
	v.SetDefault("http.cors_allow_origins", []string{})

	v.SetDefault("erp.base_url", "http://localhost:8069")
	v.SetDefault("erp.database", "erp")
	v.SetDefault("erp.uid", 2)
	v.SetDefault("erp.timeout", 30*time.Second)
	v.SetDefault("erp.batch_limit", 500)

	v.SetDefault("rates.series_url", "https://banguat.gob.gt/api/tipo_cambio/series")
	v.SetDefault("rates.ttl", time.Hour)
	v.SetDefault("rates.fallback_rate", 7.80)
	v.SetDefault("rates.utc_offset", -6)
	v.SetDefault("rates.timeout", 10*time.Second)

	v.SetDefault("cache.overview_ttl", 5*time.Minute)
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.ERP.BaseURL); err != nil || c.ERP.BaseURL == "" {
		return fmt.Errorf("erp.base_url is not a valid URL: %q", c.ERP.BaseURL)
	}
	if c.ERP.BatchLimit <= 0 {
		return fmt.Errorf("erp.batch_limit must be positive, got %d", c.ERP.BatchLimit)
	}
	if c.Rates.TTL <= 0 {
		return fmt.Errorf("rates.ttl must be positive, got %s", c.Rates.TTL)
	}
	if c.Rates.FallbackRate <= 0 {
		return fmt.Errorf("rates.fallback_rate must be positive, got %f", c.Rates.FallbackRate)
	}
	if c.Cache.OverviewTTL <= 0 {
		return fmt.Errorf("cache.overview_ttl must be positive, got %s", c.Cache.OverviewTTL)
	}
	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
