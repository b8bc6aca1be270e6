// Package defaults provides canonical default values for the notifier.
// This is the single source of truth for runtime configuration defaults.
//
// Usage:
//
//	cfg.Workers = defaults.Workers
//	req.Header.Set("User-Agent", defaults.UserAgent("search"))
//
// Prefer these constants over literals like `Workers: 10` in other packages.
package defaults

import "fmt"

// Version is the current notifier version
const Version = "0.4.0"

// ToolName identifies the notifier in user agents, traces and metrics.
const ToolName = "open-mesosphere-service-notifier"

// MetricsNamespace prefixes every exported metric name.
const MetricsNamespace = "service_notifier"

// ============================================================================
// SEARCH SETTINGS
// ============================================================================

const (
	// Query is the default search term: Marathon leaders answer every
	// request with this header, which makes them trivial to find.
	Query = "X-Marathon-Leader"

	// SearchPages is how many result pages are requested (1)
	SearchPages = 1

	// ShodanBaseURL is the Shodan REST API endpoint
	ShodanBaseURL = "https://api.shodan.io"
)

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================

const (
	// ConcurrencyMinimal is for single-threaded operations (1)
	ConcurrencyMinimal = 1

	// ConcurrencyLow is for browser-heavy work (5)
	ConcurrencyLow = 5

	// Workers is the enrichment pool size (10)
	Workers = 10

	// MaxWorkers caps the configurable pool size (100)
	MaxWorkers = 100
)

// ============================================================================
// RETRY SETTINGS
// ============================================================================

const (
	// RetryNone disables retries (0)
	RetryNone = 0

	// RetryMedium is the standard retry count (3)
	RetryMedium = 3

	// RetryHigh is the registry lookup attempt count (5)
	RetryHigh = 5
)

// ============================================================================
// LOOKUP SETTINGS
// ============================================================================

const (
	// LookupDepth limits how far linked registry entities are followed (1)
	LookupDepth = 1

	// MaxLookupDepth is the deepest delegation chain we accept (3)
	MaxLookupDepth = 3
)

// ============================================================================
// SCREENSHOT SETTINGS
// ============================================================================

const (
	// ViewportWidth is the browser window width in pixels
	ViewportWidth = 1280

	// ViewportHeight is the browser window height in pixels
	ViewportHeight = 800
)

// BrowserNames are the executables searched on PATH for headless capture.
var BrowserNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"headless-shell",
}

// ============================================================================
// USER AGENTS
// ============================================================================

const (
	// UAChrome is a desktop Chrome user agent used for captures
	UAChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// UAMinimal is a minimal user agent
	UAMinimal = "service-notifier/" + Version
)

// UserAgent returns the notifier user agent with context
func UserAgent(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("service-notifier/%s (%s)", Version, context)
}
