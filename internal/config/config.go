package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects the backend. Host through SSLMode apply to
// postgres, Path to sqlite.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// TailscaleConfig enables serving on the tailnet through tsnet.
type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.PathEscape(d.User), url.PathEscape(d.Password), d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix TRENINGSLOGG_ and underscore-separated paths:
//
//	TRENINGSLOGG_SERVER_HOST, TRENINGSLOGG_SERVER_PORT,
//	TRENINGSLOGG_DB_DRIVER, TRENINGSLOGG_DB_HOST, TRENINGSLOGG_DB_PORT,
//	TRENINGSLOGG_DB_NAME, TRENINGSLOGG_DB_USER, TRENINGSLOGG_DB_PASSWORD,
//	TRENINGSLOGG_DB_SSLMODE, TRENINGSLOGG_DB_PATH,
//	TRENINGSLOGG_AUTH_API_KEY,
//	TRENINGSLOGG_TAILSCALE_ENABLED, TRENINGSLOGG_TAILSCALE_HOSTNAME,
//	TRENINGSLOGG_LOG_LEVEL, TRENINGSLOGG_LOG_FILE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("TRENINGSLOGG_SERVER_HOST", &cfg.Server.Host)
	num("TRENINGSLOGG_SERVER_PORT", &cfg.Server.Port)
	str("TRENINGSLOGG_DB_DRIVER", &cfg.Database.Driver)
	str("TRENINGSLOGG_DB_HOST", &cfg.Database.Host)
	num("TRENINGSLOGG_DB_PORT", &cfg.Database.Port)
	str("TRENINGSLOGG_DB_NAME", &cfg.Database.Name)
	str("TRENINGSLOGG_DB_USER", &cfg.Database.User)
	str("TRENINGSLOGG_DB_PASSWORD", &cfg.Database.Password)
	str("TRENINGSLOGG_DB_SSLMODE", &cfg.Database.SSLMode)
	str("TRENINGSLOGG_DB_PATH", &cfg.Database.Path)
	str("TRENINGSLOGG_AUTH_API_KEY", &cfg.Auth.APIKey)
	if v := os.Getenv("TRENINGSLOGG_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	str("TRENINGSLOGG_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	str("TRENINGSLOGG_LOG_LEVEL", &cfg.Logging.Level)
	str("TRENINGSLOGG_LOG_FILE", &cfg.Logging.File)
}

func applyDefaults(cfg *Config) {
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = "treningslogg.db"
	}
	if cfg.Tailscale.Enabled && cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "treningslogg"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
