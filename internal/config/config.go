// Package config loads runtime configuration from the environment, an
// optional .env file and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process configuration shared by every subcommand.
type Config struct {
	DBPath        string        `env:"SHIFTOPS_DB_PATH"`
	PhotoDir      string        `env:"SHIFTOPS_PHOTO_DIR"`
	TimeZone      string        `env:"SHIFTOPS_TZ" envDefault:"Local"`
	HTTPAddr      string        `env:"SHIFTOPS_HTTP_ADDR" envDefault:":8080"`
	PublicURL     string        `env:"SHIFTOPS_PUBLIC_URL" envDefault:"http://localhost:8080"`
	RedisAddr     string        `env:"SHIFTOPS_REDIS_ADDR"`
	RedisPassword string        `env:"SHIFTOPS_REDIS_PASSWORD"`
	RedisDB       int           `env:"SHIFTOPS_REDIS_DB" envDefault:"0"`
	VerifyTTL     time.Duration `env:"SHIFTOPS_VERIFY_TTL" envDefault:"2h"`
	SweepInterval time.Duration `env:"SHIFTOPS_SWEEP_INTERVAL" envDefault:"5m"`
	LogLevel      string        `env:"SHIFTOPS_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"SHIFTOPS_LOG_FORMAT" envDefault:"json"`
	LogFile       string        `env:"SHIFTOPS_LOG_FILE"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv reads path into the process environment. A missing file is not
// an error; variables already set are left alone.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.PhotoDir, "photos", cfg.PhotoDir, "Directory for completion photos")
	fs.StringVar(&cfg.TimeZone, "tz", cfg.TimeZone, "IANA time zone of the location")
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "Base URL used for photo links")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for verification sessions (empty: in-memory)")
	fs.DurationVar(&cfg.VerifyTTL, "verify-ttl", cfg.VerifyTTL, "Lifetime of a location verification")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Stale-claim sweep interval")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves the configured time zone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
