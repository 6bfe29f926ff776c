package app

import (
	"fmt"
	"slices"
	"time"

	"github.com/aussiebroadwan/marquee/pkg/httpx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers selectable with AUTH_STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverBolt     = "bolt"
)

var drivers = []string{DriverSQLite, DriverPostgres, DriverRedis, DriverBolt}

type Config struct {
	// Signing secrets. Required in prod, generated per process otherwise.
	AccessSecret  string `env:"JWT_SECRET"`
	RefreshSecret string `env:"JWT_REFRESH_SECRET"`

	Issuer     string        `env:"AUTH_ISSUER" envDefault:"marquee-auth"`
	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"168h"`

	StoreDriver   string `env:"AUTH_STORE_DRIVER" envDefault:"sqlite"`
	DatabaseFile  string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	PostgresDSN   string `env:"AUTH_POSTGRES_DSN"`
	RedisAddr     string `env:"AUTH_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"AUTH_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTH_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"AUTH_REDIS_PREFIX" envDefault:"marquee"`
	BoltFile      string `env:"AUTH_BOLT_FILE" envDefault:"auth.bolt"`

	PepperFile   string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`
	CookieSecure bool   `env:"AUTH_COOKIE_SECURE" envDefault:"false"`

	// ENV is dev, staging or prod.
	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// RATELIMIT_STRICT_REQUESTS, RATELIMIT_MODERATE_WINDOW and so on. Unset
	// tiers fall back to httpx.DefaultRateLimits.
	RateLimits httpx.RateLimits `envPrefix:"RATELIMIT_"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether ENV is prod.
func (c Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c Config) validate() error {
	if !slices.Contains(drivers, c.StoreDriver) {
		return fmt.Errorf("AUTH_STORE_DRIVER must be one of %v, got %q", drivers, c.StoreDriver)
	}
	if c.StoreDriver == DriverPostgres && c.PostgresDSN == "" {
		return fmt.Errorf("AUTH_POSTGRES_DSN is required for the postgres driver")
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("AUTH_ACCESS_TTL (%s) must be shorter than AUTH_REFRESH_TTL (%s)", c.AccessTTL, c.RefreshTTL)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.HousekeepingInterval <= 0 {
		return fmt.Errorf("HOUSEKEEPING_INTERVAL must be positive")
	}

	return nil
}
