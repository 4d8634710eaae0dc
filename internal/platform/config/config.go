package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers accepted by StoreConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StorageKey is the single key the registration document lives under.
const StorageKey = "africaMapData"

// Server captures process level configuration.
type Server struct {
	Addr            string        `env:"AFRICAMAP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"AFRICAMAP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogFormat       string        `env:"AFRICAMAP_LOG_FORMAT" envDefault:"text"`
	LogLevel        string        `env:"AFRICAMAP_LOG_LEVEL" envDefault:"info"`

	Store     StoreConfig
	Redis     RedisConfig
	Dashboard DashboardConfig
}

// StoreConfig selects and configures the registration store backend.
type StoreConfig struct {
	Driver      string `env:"AFRICAMAP_STORE_DRIVER" envDefault:"file"`
	Path        string `env:"AFRICAMAP_STORE_PATH" envDefault:"africa-map-data.json"`
	Key         string `env:"AFRICAMAP_STORE_KEY" envDefault:"africaMapData"`
	PostgresURL string `env:"AFRICAMAP_POSTGRES_URL"`
	SQLitePath  string `env:"AFRICAMAP_SQLITE_PATH" envDefault:"africa-map.db"`
	SeedFile    string `env:"AFRICAMAP_SEED_FILE"`
	Watch       bool   `env:"AFRICAMAP_STORE_WATCH" envDefault:"true"`
	MaxRetries  int    `env:"AFRICAMAP_STORE_MAX_RETRIES" envDefault:"5"`
}

// RedisConfig configures the go-redis client used by the redis store driver.
type RedisConfig struct {
	URL          string        `env:"AFRICAMAP_REDIS_URL"`
	PoolSize     int           `env:"AFRICAMAP_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"AFRICAMAP_REDIS_MIN_IDLE_CONNS" envDefault:"1"`
	DialTimeout  time.Duration `env:"AFRICAMAP_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"AFRICAMAP_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"AFRICAMAP_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// DashboardConfig controls aggregation limits, the refresh timer and the
// per-client registration limit (RegisterLimit per RegisterWindow, 0 disables).
// TrustedProxies is a comma-separated CIDR list whose forwarding headers are
// believed when identifying the client.
type DashboardConfig struct {
	RefreshInterval time.Duration  `env:"AFRICAMAP_REFRESH_INTERVAL" envDefault:"10s"`
	TopN            int            `env:"AFRICAMAP_TOP_N" envDefault:"10"`
	RecentN         int            `env:"AFRICAMAP_RECENT_N" envDefault:"5"`
	StrictCountries bool           `env:"AFRICAMAP_STRICT_COUNTRIES" envDefault:"false"`
	Timezone        string         `env:"AFRICAMAP_TIMEZONE" envDefault:"UTC"`
	RegisterLimit   int            `env:"AFRICAMAP_REGISTER_LIMIT" envDefault:"30"`
	RegisterWindow  time.Duration  `env:"AFRICAMAP_REGISTER_WINDOW" envDefault:"1m"`
	TrustedProxies  []netip.Prefix `env:"AFRICAMAP_TRUSTED_PROXIES" envSeparator:","`
}

// Location resolves the configured display timezone.
func (d DashboardConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", d.Timezone, err)
	}
	return loc, nil
}

// LoadDotEnv loads variables from a .env file when one exists. Variables
// already present in the environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Server) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("AFRICAMAP_REDIS_URL is required for the redis store driver")
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("AFRICAMAP_POSTGRES_URL is required for the postgres store driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.MaxRetries <= 0 {
		return fmt.Errorf("store max retries must be positive, got %d", c.Store.MaxRetries)
	}
	if c.Store.Key == "" {
		return fmt.Errorf("store key must not be empty")
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.Dashboard.RefreshInterval)
	}
	if c.Dashboard.TopN <= 0 || c.Dashboard.RecentN <= 0 {
		return fmt.Errorf("top and recent limits must be positive")
	}
	if c.Dashboard.RegisterLimit < 0 {
		return fmt.Errorf("register limit must not be negative")
	}
	if c.Dashboard.RegisterLimit > 0 && c.Dashboard.RegisterWindow <= 0 {
		return fmt.Errorf("register window must be positive when a register limit is set")
	}
	if _, err := c.Dashboard.Location(); err != nil {
		return err
	}
	return nil
}
