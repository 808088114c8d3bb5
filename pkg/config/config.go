// Package config loads sync settings from an optional YAML file and
// FEVER_* environment variables. Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/fever-order-sync/pkg/auth"
	"github.com/Sternrassler/fever-order-sync/pkg/logging"
	"github.com/Sternrassler/fever-order-sync/pkg/search"
)

// DefaultHost is the production reporting API host.
const DefaultHost = "data-reporting-api.prod.feverup.com"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FEVER_"

// Config holds all sync settings.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Search  SearchConfig  `yaml:"search"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig selects and throttles the reporting API.
type APIConfig struct {
	// Host is a bare host name or a full base URL.
	Host      string  `yaml:"host"`
	UserAgent string  `yaml:"user_agent"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// AuthConfig holds credentials. Token wins over username/password.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// SearchConfig holds the search filter and polling budget.
type SearchConfig struct {
	// PlanIDs is a comma separated list; invalid entries are dropped.
	PlanIDs   string `yaml:"plan_ids"`
	DateField string `yaml:"date_field"`
	DateFrom  string `yaml:"date_from"`
	DateTo    string `yaml:"date_to"`

	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// RedisConfig enables the run-state store when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig configures the metrics export of batch runs.
type MetricsConfig struct {
	// Textfile, when set, receives all metrics after the run.
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	poll := search.DefaultPollConfig()
	return &Config{
		API: APIConfig{
			Host:      DefaultHost,
			UserAgent: "fever-order-sync/0.1.0",
			Burst:     1,
		},
		Search: SearchConfig{
			PollAttempts: poll.MaxAttempts,
			PollInterval: poll.Interval,
		},
		Redis: RedisConfig{
			LockTTL: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies FEVER_* variables found by lookup.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	str("HOST", &c.API.Host)
	str("USER_AGENT", &c.API.UserAgent)
	str("USERNAME", &c.Auth.Username)
	str("PASSWORD", &c.Auth.Password)
	str("TOKEN", &c.Auth.Token)
	str("PLAN_IDS", &c.Search.PlanIDs)
	str("DATE_FIELD", &c.Search.DateField)
	str("DATE_FROM", &c.Search.DateFrom)
	str("DATE_TO", &c.Search.DateTo)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("LOG_LEVEL", &c.Logging.Level)
	str("METRICS_TEXTFILE", &c.Metrics.Textfile)

	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		c.API.RateLimit = f
	}
	if v, ok := lookup(EnvPrefix + "POLL_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPOLL_ATTEMPTS: %w", EnvPrefix, err)
		}
		c.Search.PollAttempts = n
	}
	if v, ok := lookup(EnvPrefix + "POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPOLL_INTERVAL: %w", EnvPrefix, err)
		}
		c.Search.PollInterval = d
	}
	if v, ok := lookup(EnvPrefix + "LOG_PRETTY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_PRETTY: %w", EnvPrefix, err)
		}
		c.Logging.Pretty = b
	}
	return nil
}

// Validate checks the settings needed for a run.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.Host) == "" {
		errs = append(errs, errors.New("api.host is required"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit must be >= 0 (got %v)", c.API.RateLimit))
	}
	if c.Search.PollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("search.poll_attempts must be > 0 (got %d)", c.Search.PollAttempts))
	}
	if c.Search.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("search.poll_interval must be >= 0 (got %v)", c.Search.PollInterval))
	}
	if err := c.Filter().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search: %w", err))
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("redis.lock_ttl must be > 0 (got %v)", c.Redis.LockTTL))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}

// BaseURL returns the API base URL, defaulting the scheme to https.
func (c *Config) BaseURL() string {
	host := strings.TrimRight(strings.TrimSpace(c.API.Host), "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// Credentials returns the configured credentials.
func (c *Config) Credentials() auth.Credentials {
	return auth.Credentials{
		Username: c.Auth.Username,
		Password: c.Auth.Password,
		Token:    c.Auth.Token,
	}
}

// Filter returns the configured search filter.
func (c *Config) Filter() search.Filter {
	return search.Filter{
		PlanIDs:   search.ParsePlanIDs(c.Search.PlanIDs),
		DateField: strings.TrimSpace(c.Search.DateField),
		DateFrom:  strings.TrimSpace(c.Search.DateFrom),
		DateTo:    strings.TrimSpace(c.Search.DateTo),
	}
}
