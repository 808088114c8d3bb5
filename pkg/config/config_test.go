package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fever.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultHost, cfg.API.Host)
	assert.Equal(t, 60, cfg.Search.PollAttempts)
	assert.Equal(t, 2*time.Second, cfg.Search.PollInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "https://"+DefaultHost, cfg.BaseURL())
}

func TestLoad_File(t *testing.T) {
	t.Setenv("FEVER_HOST", "")
	path := writeFile(t, `
api:
  host: reporting.example.com
  rate_limit: 5
auth:
  username: ops@example.com
  password: hunter2
search:
  plan_ids: "123, 456,abc"
  date_field: created_date_utc
  date_from: "2024-01-01"
  poll_interval: 500ms
redis:
  addr: localhost:6379
  lock_ttl: 5m
logging:
  level: debug
  pretty: true
metrics:
  textfile: /var/lib/node_exporter/fever.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "reporting.example.com", cfg.API.Host)
	assert.Equal(t, 5.0, cfg.API.RateLimit)
	assert.Equal(t, 1, cfg.API.Burst, "defaults survive partial files")
	assert.Equal(t, "ops@example.com", cfg.Auth.Username)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.PollInterval)
	assert.Equal(t, 60, cfg.Search.PollAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Redis.LockTTL)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, "/var/lib/node_exporter/fever.prom", cfg.Metrics.Textfile)

	f := cfg.Filter()
	assert.Equal(t, []string{"123", "456", "abc"}, f.PlanIDs)
	assert.Equal(t, []int64{123, 456}, f.NormalizedPlanIDs())
	assert.Equal(t, "created_date_utc", f.DateField)
	assert.Equal(t, "2024-01-01", f.DateFrom)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, cfg.API.Host)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, cfg.API.Host)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeFile(t, "api: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "auth:\n  username: file-user\n")
	t.Setenv("FEVER_USERNAME", "env-user")
	t.Setenv("FEVER_TOKEN", "env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-user", cfg.Auth.Username)
	assert.Equal(t, "env-token", cfg.Credentials().Token)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnvOverrides(envMap(map[string]string{
		"FEVER_HOST":             "http://localhost:8080",
		"FEVER_PASSWORD":         "pw",
		"FEVER_PLAN_IDS":         "1,2",
		"FEVER_DATE_TO":          "2024-12-31",
		"FEVER_RATE_LIMIT":       "2.5",
		"FEVER_POLL_ATTEMPTS":    "10",
		"FEVER_POLL_INTERVAL":    "3s",
		"FEVER_LOG_PRETTY":       "true",
		"FEVER_REDIS_ADDR":       "redis:6379",
		"FEVER_METRICS_TEXTFILE": "/tmp/m.prom",
		"FEVER_LOG_LEVEL":        "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
	assert.Equal(t, "pw", cfg.Auth.Password)
	assert.Equal(t, "1,2", cfg.Search.PlanIDs)
	assert.Equal(t, "2024-12-31", cfg.Search.DateTo)
	assert.Equal(t, 2.5, cfg.API.RateLimit)
	assert.Equal(t, 10, cfg.Search.PollAttempts)
	assert.Equal(t, 3*time.Second, cfg.Search.PollInterval)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "/tmp/m.prom", cfg.Metrics.Textfile)
	assert.Equal(t, "info", cfg.Logging.Level, "empty variables are ignored")
}

func TestApplyEnvOverrides_Malformed(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"rate limit", map[string]string{"FEVER_RATE_LIMIT": "fast"}},
		{"poll attempts", map[string]string{"FEVER_POLL_ATTEMPTS": "many"}},
		{"poll interval", map[string]string{"FEVER_POLL_INTERVAL": "2"}},
		{"log pretty", map[string]string{"FEVER_LOG_PRETTY": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultConfig().applyEnvOverrides(envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Search.PlanIDs = "123"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no host", func(c *Config) { c.API.Host = " " }, "api.host is required"},
		{"negative rate", func(c *Config) { c.API.RateLimit = -1 }, "api.rate_limit"},
		{"no attempts", func(c *Config) { c.Search.PollAttempts = 0 }, "search.poll_attempts"},
		{"negative interval", func(c *Config) { c.Search.PollInterval = -time.Second }, "search.poll_interval"},
		{"no plan ids", func(c *Config) { c.Search.PlanIDs = "x, 0" }, "no valid plan ids"},
		{"date without field", func(c *Config) { c.Search.DateFrom = "2024-01-01" }, "date field"},
		{"redis without ttl", func(c *Config) { c.Redis.Addr = "localhost:6379"; c.Redis.LockTTL = 0 }, "redis.lock_ttl"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"data-reporting-api.prod.feverup.com", "https://data-reporting-api.prod.feverup.com"},
		{" host.example.com/ ", "https://host.example.com"},
		{"http://127.0.0.1:9000/", "http://127.0.0.1:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.API.Host = tt.host
			assert.Equal(t, tt.want, cfg.BaseURL())
		})
	}
}
