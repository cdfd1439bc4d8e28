// Package config loads bot settings from defaults, an optional YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSheets   = "sheets"
)

// Lease backends.
const (
	LeaseNone     = "none"
	LeasePostgres = "postgres"
	LeaseRedis    = "redis"
)

// StoreConfig selects and configures the row store.
type StoreConfig struct {
	Backend         string `yaml:"backend"`
	DSN             string `yaml:"dsn"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsB64  string `yaml:"credentials_b64"`
	Migrate         bool   `yaml:"migrate"`
}

// LeaseConfig configures the optional advisory lease.
type LeaseConfig struct {
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
	Wait      time.Duration `yaml:"wait"`
}

// ThrottleConfig holds the notification windows.
type ThrottleConfig struct {
	ActiveWindow      time.Duration `yaml:"active_window"`
	NotifyCooldown    time.Duration `yaml:"notify_cooldown"`
	PresenceFreshness time.Duration `yaml:"presence_freshness"`
}

// Config is the complete bot configuration.
type Config struct {
	Token          string         `yaml:"token"`
	LogLevel       string         `yaml:"log_level"`
	HealthAddr     string         `yaml:"health_addr"`
	Concurrency    int            `yaml:"concurrency"`
	HandlerTimeout time.Duration  `yaml:"handler_timeout"`
	Store          StoreConfig    `yaml:"store"`
	Lease          LeaseConfig    `yaml:"lease"`
	Throttle       ThrottleConfig `yaml:"throttle"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:       "info",
		HealthAddr:     ":8081",
		Concurrency:    16,
		HandlerTimeout: 30 * time.Second,
		Store:          StoreConfig{Backend: BackendMemory, Migrate: true},
		Lease:          LeaseConfig{Backend: LeaseNone, TTL: 10 * time.Second, Wait: 2 * time.Second},
		Throttle: ThrottleConfig{
			ActiveWindow:      20 * time.Second,
			NotifyCooldown:    60 * time.Second,
			PresenceFreshness: 60 * time.Second,
		},
	}
}

// Load builds the configuration. getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	fl := Default()

	fs := flag.NewFlagSet("lumen-bot", flag.ContinueOnError)
	path := fs.String("config", "", "path to YAML config file")
	fs.StringVar(&fl.Token, "token", fl.Token, "Telegram bot token")
	fs.StringVar(&fl.LogLevel, "log-level", fl.LogLevel, "debug|info|warn|error")
	fs.StringVar(&fl.HealthAddr, "health-addr", fl.HealthAddr, "gRPC health listen address, empty to disable")
	fs.IntVar(&fl.Concurrency, "concurrency", fl.Concurrency, "max events handled at once")
	fs.DurationVar(&fl.HandlerTimeout, "handler-timeout", fl.HandlerTimeout, "per-event timeout")
	fs.StringVar(&fl.Store.Backend, "store", fl.Store.Backend, "row store: memory|postgres|sheets")
	fs.StringVar(&fl.Store.DSN, "dsn", fl.Store.DSN, "PostgreSQL DSN")
	fs.StringVar(&fl.Store.SpreadsheetID, "spreadsheet-id", fl.Store.SpreadsheetID, "Google spreadsheet id")
	fs.StringVar(&fl.Store.CredentialsFile, "credentials", fl.Store.CredentialsFile, "Google service account JSON file")
	fs.BoolVar(&fl.Store.Migrate, "migrate", fl.Store.Migrate, "apply migrations on start (postgres)")
	fs.StringVar(&fl.Lease.Backend, "lease", fl.Lease.Backend, "advisory lease: none|postgres|redis")
	fs.StringVar(&fl.Lease.RedisAddr, "redis-addr", fl.Lease.RedisAddr, "Redis address for the redis lease")
	fs.DurationVar(&fl.Throttle.ActiveWindow, "active-window", fl.Throttle.ActiveWindow, "suppress notifications after the target opened the dialog")
	fs.DurationVar(&fl.Throttle.NotifyCooldown, "notify-cooldown", fl.Throttle.NotifyCooldown, "minimum interval between notifications")
	fs.DurationVar(&fl.Throttle.PresenceFreshness, "presence-freshness", fl.Throttle.PresenceFreshness, "presence age still treated as looking at the dialog")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *path != "" {
		if err := readFile(*path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg, getenv)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "token":
			cfg.Token = fl.Token
		case "log-level":
			cfg.LogLevel = fl.LogLevel
		case "health-addr":
			cfg.HealthAddr = fl.HealthAddr
		case "concurrency":
			cfg.Concurrency = fl.Concurrency
		case "handler-timeout":
			cfg.HandlerTimeout = fl.HandlerTimeout
		case "store":
			cfg.Store.Backend = fl.Store.Backend
		case "dsn":
			cfg.Store.DSN = fl.Store.DSN
		case "spreadsheet-id":
			cfg.Store.SpreadsheetID = fl.Store.SpreadsheetID
		case "credentials":
			cfg.Store.CredentialsFile = fl.Store.CredentialsFile
		case "migrate":
			cfg.Store.Migrate = fl.Store.Migrate
		case "lease":
			cfg.Lease.Backend = fl.Lease.Backend
		case "redis-addr":
			cfg.Lease.RedisAddr = fl.Lease.RedisAddr
		case "active-window":
			cfg.Throttle.ActiveWindow = fl.Throttle.ActiveWindow
		case "notify-cooldown":
			cfg.Throttle.NotifyCooldown = fl.Throttle.NotifyCooldown
		case "presence-freshness":
			cfg.Throttle.PresenceFreshness = fl.Throttle.PresenceFreshness
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func setFromEnv(getenv func(string) string, dst *string, key string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setFromEnv(getenv, &cfg.Token, "BOT_TOKEN")
	setFromEnv(getenv, &cfg.Lease.RedisAddr, "REDIS_ADDR")
	cfg.Store.ApplyEnv(getenv)
}

// ApplyEnv overrides store settings present in the environment.
func (c *StoreConfig) ApplyEnv(getenv func(string) string) {
	setFromEnv(getenv, &c.SpreadsheetID, "SPREADSHEET_ID")
	setFromEnv(getenv, &c.CredentialsFile, "GOOGLE_SERVICE_ACCOUNT_FILE")
	setFromEnv(getenv, &c.CredentialsB64, "GOOGLE_SERVICE_ACCOUNT_B64")
	setFromEnv(getenv, &c.DSN, "DATABASE_DSN")
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	var problems []error
	if c.Token == "" {
		problems = append(problems, errors.New("telegram token is required (BOT_TOKEN or -token)"))
	}
	if c.Concurrency <= 0 {
		problems = append(problems, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}

	if err := c.Store.Validate(); err != nil {
		problems = append(problems, err)
	}

	switch c.Lease.Backend {
	case LeaseNone:
	case LeasePostgres:
		if c.Store.DSN == "" {
			problems = append(problems, errors.New("postgres lease needs a DSN"))
		}
	case LeaseRedis:
		if c.Lease.RedisAddr == "" {
			problems = append(problems, errors.New("redis lease needs REDIS_ADDR"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown lease backend %q", c.Lease.Backend))
	}

	for name, d := range map[string]time.Duration{
		"active_window":      c.Throttle.ActiveWindow,
		"notify_cooldown":    c.Throttle.NotifyCooldown,
		"presence_freshness": c.Throttle.PresenceFreshness,
	} {
		if d < 0 {
			problems = append(problems, fmt.Errorf("throttle.%s must not be negative", name))
		}
	}
	return errors.Join(problems...)
}

// Validate checks the settings of the selected store backend.
func (c StoreConfig) Validate() error {
	var problems []error
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DSN == "" {
			problems = append(problems, errors.New("postgres store needs a DSN (DATABASE_DSN or -dsn)"))
		}
	case BackendSheets:
		if c.SpreadsheetID == "" {
			problems = append(problems, errors.New("sheets store needs SPREADSHEET_ID"))
		}
		if c.CredentialsFile == "" && c.CredentialsB64 == "" {
			problems = append(problems, errors.New("sheets store needs GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_B64"))
		}
		if c.CredentialsB64 != "" {
			if _, err := base64.StdEncoding.DecodeString(c.CredentialsB64); err != nil {
				problems = append(problems, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_B64: %w", err))
			}
		}
	default:
		problems = append(problems, fmt.Errorf("unknown store backend %q", c.Backend))
	}
	return errors.Join(problems...)
}
