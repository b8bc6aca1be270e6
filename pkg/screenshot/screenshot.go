// Package screenshot captures a PNG of a service's landing page with a
// headless Chrome. When no browser is available the Disabled capturer is
// used instead and captures are skipped rather than attempted.
package screenshot

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/duration"
)

// ErrSnapshotFailed is returned when a capture could not be produced.
var ErrSnapshotFailed = errors.New("screenshot: capture failed")

// ErrDisabled is returned by the Disabled capturer.
var ErrDisabled = errors.New("screenshot: disabled")

// Config configures screenshot capture
type Config struct {
	Enabled     bool          // Attempt captures at all
	ExecPath    string        // Browser binary; empty searches PATH
	Width       int           // Viewport width
	Height      int           // Viewport height
	PageTimeout time.Duration // Limit for one capture including browser start
	WaitFor     time.Duration // Wait after page load
	Proxy       string        // Proxy server handed to the browser
	UserAgent   string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Width:       defaults.ViewportWidth,
		Height:      defaults.ViewportHeight,
		PageTimeout: duration.BrowserPage,
		WaitFor:     duration.BrowserIdle,
		UserAgent:   defaults.UAChrome,
	}
}

// Snapshot is a captured page image.
type Snapshot struct {
	URL       string        `json:"url"`
	PNG       []byte        `json:"-"`
	Base64    string        `json:"base64,omitempty"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Size      int           `json:"size_bytes"`
	Duration  time.Duration `json:"capture_duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Capturer produces snapshots of http://host:port/.
type Capturer interface {
	Capture(ctx context.Context, host string, port int) (*Snapshot, error)
	Enabled() bool
}

// Disabled is the capturer used when no browser is available.
type Disabled struct{}

// Capture always fails with ErrDisabled.
func (Disabled) Capture(context.Context, string, int) (*Snapshot, error) {
	return nil, ErrDisabled
}

// Enabled reports false.
func (Disabled) Enabled() bool { return false }

// TargetURL returns the page captured for host and port. IPv6 literals
// are bracketed and zones escaped.
func TargetURL(host string, port int) string {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/",
	}
	return u.String()
}

// Detect resolves the capturer once at startup. It logs a single line when
// captures will be skipped.
func Detect(cfg Config, logger *slog.Logger) Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Info("screenshots disabled by configuration")
		return Disabled{}
	}
	path, ok := findBrowser(cfg.ExecPath)
	if !ok {
		if cfg.ExecPath != "" {
			logger.Info("screenshots disabled, browser not found", slog.String("path", cfg.ExecPath))
		} else {
			logger.Info("screenshots disabled, no headless browser on PATH")
		}
		return Disabled{}
	}
	logger.Debug("headless browser found", slog.String("path", path))
	cfg.ExecPath = path
	return NewChrome(cfg, WithLogger(logger))
}
