// Package duration provides canonical time constants for the notifier.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.BrowserPage)
//	cfg.Budget = duration.LookupBudget
//
// Reference these constants instead of hardcoding `30 * time.Second`.
package duration

import "time"

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPAPI is for external API calls like the search provider (60s)
	HTTPAPI = 60 * time.Second

	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second
)

// ============================================================================
// REGISTRY LOOKUP
// ============================================================================

const (
	// LookupConnect bounds a single registry request (10s)
	LookupConnect = 10 * time.Second

	// LookupBudget bounds one lookup including retries and rate-limit backoff (60s)
	LookupBudget = 60 * time.Second

	// LookupRetryDelay is the first backoff step between registry attempts (1s)
	LookupRetryDelay = 1 * time.Second

	// LookupRetryMax caps a single backoff step (15s)
	LookupRetryMax = 15 * time.Second
)

// ============================================================================
// BROWSER/HEADLESS TIMEOUTS
// ============================================================================

const (
	// BrowserPage is for page load timeout (30s)
	BrowserPage = 30 * time.Second

	// BrowserIdle is the settle time after load before capturing (2s)
	BrowserIdle = 2 * time.Second

	// BrowserShutdown bounds graceful browser teardown before a forced kill (5s)
	BrowserShutdown = 5 * time.Second
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// TelemetryConnect bounds exporter connection setup (10s)
	TelemetryConnect = 10 * time.Second

	// TelemetryShutdown bounds flushing spans and pushing metrics at exit (5s)
	TelemetryShutdown = 5 * time.Second
)

// ============================================================================
// PROCESS
// ============================================================================

const (
	// ShutdownGrace is how long a second interrupt is awaited before giving up (10s)
	ShutdownGrace = 10 * time.Second
)
