package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Persist   PersistConfig   `mapstructure:"persist"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Environment  string        `mapstructure:"environment"` // "dev" or "prod"
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	TrustedProxies []string `mapstructure:"trusted_proxies"` // empty trusts none; ClientIP uses RemoteAddr
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether error details and stack traces must be hidden.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "prod" || s.Environment == "production"
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"` // false falls back to the in-process store
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ProviderConfig struct {
	Yahoo          YahooConfig        `mapstructure:"yahoo"`
	AlphaVantage   AlphaVantageConfig `mapstructure:"alphavantage"`
	MaxConcurrency int                `mapstructure:"max_concurrency"` // per batch fan-out
}

type YahooConfig struct {
	ChartURL   string        `mapstructure:"chart_url"`   // v8 chart + v1 search host
	SummaryURL string        `mapstructure:"summary_url"` // v10 quoteSummary host
	Timeout    time.Duration `mapstructure:"timeout"`
}

type AlphaVantageConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"` // empty disables treasury yields
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds per-kind TTL overrides.
type CacheConfig struct {
	QuoteTTL       time.Duration `mapstructure:"quote_ttl"`
	HistoricalTTL  time.Duration `mapstructure:"historical_ttl"`
	CompanyTTL     time.Duration `mapstructure:"company_ttl"`
	SectorsTTL     time.Duration `mapstructure:"sectors_ttl"`
	OverviewTTL    time.Duration `mapstructure:"overview_ttl"`
	SearchTTL      time.Duration `mapstructure:"search_ttl"`
	MacroTTL       time.Duration `mapstructure:"macro_ttl"`
	CollapseMisses bool          `mapstructure:"collapse_misses"`
}

type AuthConfig struct {
	AccessSecret       string        `mapstructure:"access_secret"`
	RefreshSecret      string        `mapstructure:"refresh_secret"`
	AccessSecretParam  string        `mapstructure:"access_secret_param"` // SSM name, prod only
	RefreshSecretParam string        `mapstructure:"refresh_secret_param"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
	RefreshTTL         time.Duration `mapstructure:"refresh_ttl"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
	RateLimitMax       int           `mapstructure:"rate_limit_max"`
}

type PersistConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Workers   int           `mapstructure:"workers"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	MaxSymbols int           `mapstructure:"max_symbols"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	WarmInterval time.Duration `mapstructure:"warm_interval"`
	PurgeAt      string        `mapstructure:"purge_at"` // "HH:MM" UTC
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "market_gateway")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.create_database", false)
	v.SetDefault("postgres.auto_migrate", true)
	v.SetDefault("postgres.host_param", "")
	v.SetDefault("postgres.user_param", "")
	v.SetDefault("postgres.password_param", "")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", 3*time.Second)

	v.SetDefault("provider.yahoo.chart_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.yahoo.summary_url", "https://query2.finance.yahoo.com")
	v.SetDefault("provider.yahoo.timeout", 30*time.Second)
	v.SetDefault("provider.alphavantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("provider.alphavantage.api_key", "")
	v.SetDefault("provider.alphavantage.timeout", 30*time.Second)
	v.SetDefault("provider.max_concurrency", 10)

	v.SetDefault("cache.quote_ttl", 60*time.Second)
	v.SetDefault("cache.historical_ttl", 300*time.Second)
	v.SetDefault("cache.company_ttl", time.Hour)
	v.SetDefault("cache.sectors_ttl", 300*time.Second)
	v.SetDefault("cache.overview_ttl", 120*time.Second)
	v.SetDefault("cache.search_ttl", time.Hour)
	v.SetDefault("cache.macro_ttl", 900*time.Second)
	v.SetDefault("cache.collapse_misses", false)

	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.access_secret_param", "")
	v.SetDefault("auth.refresh_secret_param", "")
	v.SetDefault("auth.access_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.rate_limit_window", 15*time.Minute)
	v.SetDefault("auth.rate_limit_max", 5)

	v.SetDefault("persist.queue_size", 256)
	v.SetDefault("persist.workers", 4)
	v.SetDefault("persist.timeout", 30*time.Second)

	v.SetDefault("stream.interval", 5*time.Second)
	v.SetDefault("stream.max_symbols", 50)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.warm_interval", time.Minute)
	v.SetDefault("scheduler.purge_at", "03:00")
}

// Load loads application configuration using Viper.
// It reads config.yaml when one is found, overrides with environment variables
// (AUTH_ACCESS_SECRET, POSTGRES_HOST, ...) and validates the result.
func Load(paths ...string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	for _, p := range paths {
		v.AddConfigPath(p)
	}
	pwd, _ := os.Getwd()
	v.AddConfigPath(filepath.Join(pwd, "config"))
	v.AddConfigPath(filepath.Join(pwd, "../../config"))
	if ex, err := os.Executable(); err == nil {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	setDefaults(v)

	// Support environment variables with dot notation (e.g., AUTH_ACCESS_SECRET)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Server.IsProduction() {
		cfg.Auth.ResolveSecrets()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs basic configuration validation.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("auth.access_secret and auth.refresh_secret are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("auth.access_secret and auth.refresh_secret must differ")
	}
	if c.Auth.BcryptCost < 10 {
		return fmt.Errorf("auth.bcrypt_cost must be at least 10, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.SessionTTL <= 0 {
		return errors.New("auth token and session TTLs must be positive")
	}
	if c.Auth.RateLimitMax <= 0 || c.Auth.RateLimitWindow <= 0 {
		return errors.New("auth rate limit window and max must be positive")
	}
	if c.Provider.MaxConcurrency <= 0 {
		return errors.New("provider.max_concurrency must be greater than 0")
	}
	if c.Provider.Yahoo.Timeout <= 0 {
		return errors.New("provider.yahoo.timeout must be greater than 0")
	}
	if c.Persist.Workers <= 0 || c.Persist.QueueSize <= 0 {
		return errors.New("persist.workers and persist.queue_size must be greater than 0")
	}
	return nil
}
