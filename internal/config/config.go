// Package config loads the service configuration from an optional YAML file,
// a .env file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultPath = "config.yml"
)

// Config holds the application's configuration.
type Config struct {
	Telegram struct {
		Token        string `yaml:"token"`
		OwnerID      int64  `yaml:"owner_id"`
		AdminGroupID int64  `yaml:"admin_group_id"`
	} `yaml:"telegram"`
	Storage struct {
		Driver      string        `yaml:"driver"`
		DSN         string        `yaml:"dsn"`
		BanCacheTTL time.Duration `yaml:"ban_cache_ttl"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	HTTP struct {
		Addr      string        `yaml:"addr"`
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"http"`
	Language string `yaml:"language"`
	Log      struct {
		Development bool `yaml:"development"`
	} `yaml:"log"`

	// Warnings collects non-fatal problems found while loading, for the
	// caller to log once a logger exists.
	Warnings []string `yaml:"-"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Storage.Driver = DriverPostgres
	cfg.Storage.BanCacheTTL = 10 * time.Minute
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.TokenTTL = 24 * time.Hour
	cfg.Language = "en"
	return cfg
}

// Load builds the configuration. An empty path means CONFIG_PATH, then
// config.yml. A missing .env or YAML file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
		cfg.Warnings = append(cfg.Warnings, "no .env file found")
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.Warnings = append(c.Warnings, fmt.Sprintf("config file %s not found, using environment only", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.DSN, "DATABASE_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.NATS.URL, "NATS_URL")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.HTTP.JWTSecret, "ADMIN_JWT_SECRET")
	setString(&c.Language, "DEFAULT_LANGUAGE")

	if err := setInt(&c.Telegram.OwnerID, "BOT_OWNER_ID"); err != nil {
		return err
	}
	if err := setInt(&c.Telegram.AdminGroupID, "ADMIN_GROUP_ID"); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("LOG_DEVELOPMENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = b
	}
	if v, ok := os.LookupEnv("BAN_CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BAN_CACHE_TTL: %w", err)
		}
		c.Storage.BanCacheTTL = d
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.OwnerID == 0 {
		errs = append(errs, errors.New("BOT_OWNER_ID is required"))
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.HTTP.JWTSecret == "" {
		errs = append(errs, errors.New("ADMIN_JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
