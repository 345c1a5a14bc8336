// Package config loads the exchange configuration. Priority: EXCHANGE_*
// environment variables > .env file > YAML file > defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "EXCHANGE_"

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Equilibrium EquilibriumConfig `yaml:"equilibrium"`
}

type ServerConfig struct {
	Address     string          `yaml:"address"`
	Port        int             `yaml:"port"`
	Workers     uint            `yaml:"workers"`
	BufferSize  int             `yaml:"buffer_size"`
	ReadTimeout time.Duration   `yaml:"read_timeout"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds the messages accepted per client session. A zero
// PerSecond disables the limit.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console (default when empty) or json
	Output     string `yaml:"output"` // stdout, stderr or a file path
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

type EquilibriumConfig struct {
	HalfLife float64 `yaml:"half_life"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:     "localhost",
			Port:        8081,
			Workers:     10,
			BufferSize:  4 * 1024,
			ReadTimeout: 100 * time.Millisecond,
			RateLimit: RateLimitConfig{
				PerSecond: 0,
				Burst:     100,
			},
		},
		Logging: LoggingConfig{
			Level:      "debug",
			Format:     "console",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		Equilibrium: EquilibriumConfig{
			HalfLife: 0.5,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv loads envFile (or ./.env when empty, if present) into the process
// environment and overrides cfg with any EXCHANGE_* variables set.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	setString("SERVER_ADDRESS", &cfg.Server.Address)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("LOG_OUTPUT", &cfg.Logging.Output)
	return errors.Join(
		setInt("SERVER_PORT", &cfg.Server.Port),
		setUint("SERVER_WORKERS", &cfg.Server.Workers),
		setInt("SERVER_BUFFER_SIZE", &cfg.Server.BufferSize),
		setDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout),
		setFloat("RATE_LIMIT_PER_SECOND", &cfg.Server.RateLimit.PerSecond),
		setInt("RATE_LIMIT_BURST", &cfg.Server.RateLimit.Burst),
		setFloat("EQUILIBRIUM_HALF_LIFE", &cfg.Equilibrium.HalfLife),
	)
}

func (cfg Config) Validate() error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if cfg.Server.Workers == 0 {
		return fmt.Errorf("server.workers must be greater than 0")
	}
	if cfg.Server.BufferSize <= 0 {
		return fmt.Errorf("server.buffer_size must be greater than 0")
	}
	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be greater than 0")
	}
	if cfg.Server.RateLimit.PerSecond < 0 {
		return fmt.Errorf("server.rate_limit.per_second must not be negative")
	}
	if cfg.Server.RateLimit.PerSecond > 0 && cfg.Server.RateLimit.Burst <= 0 {
		return fmt.Errorf("server.rate_limit.burst must be greater than 0 when a rate is set")
	}
	switch cfg.Logging.Format {
	case "console", "json", "":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Logging.Format)
	}
	if cfg.Equilibrium.HalfLife <= 0 {
		return fmt.Errorf("equilibrium.half_life must be greater than 0")
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func setUint(key string, dst *uint) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 0)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = uint(n)
	return nil
}

func setFloat(key string, dst *float64) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = f
	return nil
}

func setDuration(key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}
