// Package config assembles the notifier's runtime configuration. The
// command line carries only the API key; everything else comes from an
// optional YAML file named by NOTIFIER_CONFIG, then environment
// overrides, on top of the canonical defaults.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/duration"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/httpclient"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/iohelper"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/logging"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/tracing"
)

// Environment variables read by Load.
const (
	EnvConfigFile  = "NOTIFIER_CONFIG"
	EnvQuery       = "NOTIFIER_QUERY"
	EnvWorkers     = "NOTIFIER_WORKERS"
	EnvScreenshots = "NOTIFIER_SCREENSHOTS"
	EnvLogLevel    = "NOTIFIER_LOG_LEVEL"
	EnvProxy       = "NOTIFIER_PROXY"
	EnvAPIKey      = "SHODAN_API_KEY"
)

// Config holds all runtime options.
type Config struct {
	// APIKey is never read from the file.
	APIKey string `yaml:"-"`

	// Search settings
	Query     string `yaml:"query"`
	Pages     int    `yaml:"pages"`
	ShodanURL string `yaml:"shodan_url"`

	// Execution settings
	Workers int    `yaml:"workers"`
	Proxy   string `yaml:"proxy"`

	Lookup      LookupConfig     `yaml:"lookup"`
	Screenshots ScreenshotConfig `yaml:"screenshots"`
	Log         LogConfig        `yaml:"log"`
	Output      OutputConfig     `yaml:"output"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Tracing     tracing.Config   `yaml:"tracing"`
}

// LookupConfig controls ownership lookups.
type LookupConfig struct {
	Attempts       int           `yaml:"attempts"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Budget         time.Duration `yaml:"budget"`
	Depth          int           `yaml:"depth"`
	Server         string        `yaml:"server"` // fixed RDAP server, skips bootstrap
}

// ScreenshotConfig controls page captures.
type ScreenshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	ExecPath string        `yaml:"exec_path"`
	Timeout  time.Duration `yaml:"timeout"`
	Wait     time.Duration `yaml:"wait"`
}

// LogConfig controls the diagnostic log on stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// OutputConfig controls the record dump on stdout.
type OutputConfig struct {
	Data    bool `yaml:"data"`  // print the provider's raw record
	Image   bool `yaml:"image"` // print the base64 PNG
	NoColor bool `yaml:"no_color"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	PushGateway string `yaml:"push_gateway"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Query:     defaults.Query,
		Pages:     defaults.SearchPages,
		ShodanURL: defaults.ShodanBaseURL,
		Workers:   defaults.Workers,
		Lookup: LookupConfig{
			Attempts:       defaults.RetryHigh,
			ConnectTimeout: duration.LookupConnect,
			Budget:         duration.LookupBudget,
			Depth:          defaults.LookupDepth,
		},
		Screenshots: ScreenshotConfig{
			Enabled: true,
			Timeout: duration.BrowserPage,
			Wait:    duration.BrowserIdle,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Output: OutputConfig{
			Data: true,
		},
	}
}

// ParseFlags loads the configuration from os.Args and the environment.
func ParseFlags() (*Config, error) {
	return Load(os.Args[1:], os.Getenv, os.Stderr)
}

// Load parses args, reads the optional file and applies environment
// overrides. getenv is usually os.Getenv. Usage text goes to usage.
// flag.ErrHelp is returned unwrapped for -h.
func Load(args []string, getenv func(string) string, usage io.Writer) (*Config, error) {
	var apiKey string
	fs := flag.NewFlagSet(defaults.ToolName, flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.StringVar(&apiKey, "api-key", "", "Shodan API key (or "+EnvAPIKey+")")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s --api-key KEY\n\n", defaults.ToolName)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nTuning: set %s to a YAML file; %s, %s, %s, %s and %s override it.\n",
			EnvConfigFile, EnvQuery, EnvWorkers, EnvScreenshots, EnvLogLevel, EnvProxy)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrInvalidConfig, fs.Args())
	}

	cfg := Default()
	if path := getenv(EnvConfigFile); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	cfg.APIKey = apiKey
	if cfg.APIKey == "" {
		cfg.APIKey = getenv(EnvAPIKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file at path into cfg. Unknown keys are errors.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	defer f.Close()

	data, err := iohelper.ReadBodySmall(f)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvQuery); v != "" {
		c.Query = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvWorkers, v, err)
		}
		c.Workers = n
	}
	if v := getenv(EnvScreenshots); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvScreenshots, v, err)
		}
		c.Screenshots.Enabled = on
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvProxy); v != "" {
		c.Proxy = v
	}
	return nil
}

// Validate checks the configuration for missing or out-of-range values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: --api-key (or %s)", ErrMissingRequired, EnvAPIKey)
	}
	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("%w: query", ErrMissingRequired)
	}

	var errs []error
	if c.Workers < defaults.ConcurrencyMinimal || c.Workers > defaults.MaxWorkers {
		errs = append(errs, fmt.Errorf("workers must be %d-%d, got %d", defaults.ConcurrencyMinimal, defaults.MaxWorkers, c.Workers))
	}
	if c.Pages < 1 {
		errs = append(errs, fmt.Errorf("pages must be at least 1, got %d", c.Pages))
	}
	if c.Lookup.Attempts < 1 {
		errs = append(errs, fmt.Errorf("lookup.attempts must be at least 1, got %d", c.Lookup.Attempts))
	}
	if c.Lookup.ConnectTimeout <= 0 || c.Lookup.Budget <= 0 {
		errs = append(errs, errors.New("lookup timeouts must be positive"))
	}
	if c.Lookup.Depth < 0 || c.Lookup.Depth > defaults.MaxLookupDepth {
		errs = append(errs, fmt.Errorf("lookup.depth must be 0-%d, got %d", defaults.MaxLookupDepth, c.Lookup.Depth))
	}
	if c.Screenshots.Timeout <= 0 {
		errs = append(errs, errors.New("screenshots.timeout must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be %q or %q", logging.FormatText, logging.FormatJSON))
	}
	if c.Proxy != "" {
		if _, err := httpclient.ParseProxyURL(c.Proxy); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Summary returns the settings worth echoing at startup, in display order.
func (c *Config) Summary() ([]string, map[string]string) {
	keys := []string{"Query", "Workers", "Pages", "Screenshots", "Lookup", "Proxy"}
	return keys, map[string]string{
		"Query":       c.Query,
		"Workers":     strconv.Itoa(c.Workers),
		"Pages":       strconv.Itoa(c.Pages),
		"Screenshots": strconv.FormatBool(c.Screenshots.Enabled),
		"Lookup":      fmt.Sprintf("%d attempts, %s/%s, depth %d", c.Lookup.Attempts, c.Lookup.ConnectTimeout, c.Lookup.Budget, c.Lookup.Depth),
		"Proxy":       c.Proxy,
	}
}
