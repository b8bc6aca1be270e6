package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// env builds a getenv func over a fixed map.
func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "notifier.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--api-key", "k"}, env(nil), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "X-Marathon-Leader", cfg.Query)
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 1, cfg.Pages)
	assert.Equal(t, 5, cfg.Lookup.Attempts)
	assert.Equal(t, 10*time.Second, cfg.Lookup.ConnectTimeout)
	assert.Equal(t, 60*time.Second, cfg.Lookup.Budget)
	assert.Equal(t, 1, cfg.Lookup.Depth)
	assert.True(t, cfg.Screenshots.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingKey(t *testing.T) {
	_, err := Load(nil, env(nil), io.Discard)
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestLoad_KeyFromEnv(t *testing.T) {
	cfg, err := Load(nil, env(map[string]string{EnvAPIKey: "from-env"}), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)

	cfg, err = Load([]string{"-api-key=flag"}, env(map[string]string{EnvAPIKey: "from-env"}), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "flag", cfg.APIKey, "flag wins over env")
}

func TestLoad_OnlyAPIKeyFlag(t *testing.T) {
	_, err := Load([]string{"--api-key", "k", "--workers", "5"}, env(nil), io.Discard)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load([]string{"--api-key", "k", "extra"}, env(nil), io.Discard)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_Help(t *testing.T) {
	_, err := Load([]string{"-h"}, env(nil), io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
query: "X-Marathon-Leader port:8080"
workers: 4
pages: 2
lookup:
  attempts: 3
  connect_timeout: 2s
  budget: 20s
  depth: 0
screenshots:
  enabled: false
log:
  level: debug
  format: json
metrics:
  push_gateway: http://pushgateway:9091
tracing:
  endpoint: otel-collector:4317
  insecure: true
`)
	cfg, err := Load([]string{"--api-key", "k"}, env(map[string]string{EnvConfigFile: path}), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "X-Marathon-Leader port:8080", cfg.Query)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2, cfg.Pages)
	assert.Equal(t, 3, cfg.Lookup.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Lookup.ConnectTimeout)
	assert.Equal(t, 20*time.Second, cfg.Lookup.Budget)
	assert.Equal(t, 0, cfg.Lookup.Depth)
	assert.False(t, cfg.Screenshots.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Screenshots.Timeout, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "http://pushgateway:9091", cfg.Metrics.PushGateway)
	assert.Equal(t, "otel-collector:4317", cfg.Tracing.Endpoint)
	assert.True(t, cfg.Tracing.Insecure)
}

func TestLoad_FileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "wokers: 3\n"},
		{"bad duration", "lookup:\n  budget: soon\n"},
		{"bad yaml", "query: [\n"},
		{"api key not allowed", "api_key: sekrit\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.body)
			_, err := Load([]string{"--api-key", "k"}, env(map[string]string{EnvConfigFile: path}), io.Discard)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Load([]string{"--api-key", "k"}, env(map[string]string{EnvConfigFile: "/nonexistent.yaml"}), io.Discard)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "")
	cfg, err := Load([]string{"--api-key", "k"}, env(map[string]string{EnvConfigFile: path}), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "workers: 4\nquery: from-file\n")
	cfg, err := Load([]string{"--api-key", "k"}, env(map[string]string{
		EnvConfigFile:  path,
		EnvWorkers:     "7",
		EnvQuery:       "from-env",
		EnvScreenshots: "false",
		EnvLogLevel:    "warn",
		EnvProxy:       "socks5://127.0.0.1:9050",
	}), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "from-env", cfg.Query)
	assert.False(t, cfg.Screenshots.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "socks5://127.0.0.1:9050", cfg.Proxy)
}

func TestLoad_BadEnv(t *testing.T) {
	for k, v := range map[string]string{EnvWorkers: "ten", EnvScreenshots: "maybe"} {
		_, err := Load([]string{"--api-key", "k"}, env(map[string]string{k: v}), io.Discard)
		assert.ErrorIs(t, err, ErrInvalidConfig, k)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"ok", func(*Config) {}, nil},
		{"empty query", func(c *Config) { c.Query = " " }, ErrMissingRequired},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidConfig},
		{"too many workers", func(c *Config) { c.Workers = 101 }, ErrInvalidConfig},
		{"zero pages", func(c *Config) { c.Pages = 0 }, ErrInvalidConfig},
		{"zero attempts", func(c *Config) { c.Lookup.Attempts = 0 }, ErrInvalidConfig},
		{"depth", func(c *Config) { c.Lookup.Depth = 4 }, ErrInvalidConfig},
		{"budget", func(c *Config) { c.Lookup.Budget = 0 }, ErrInvalidConfig},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidConfig},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidConfig},
		{"proxy", func(c *Config) { c.Proxy = "ftp://x:1" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIKey = "k"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	cfg := Default()
	keys, vals := cfg.Summary()
	for _, k := range keys {
		_, ok := vals[k]
		assert.True(t, ok, k)
	}
	assert.Equal(t, "X-Marathon-Leader", vals["Query"])
}
