package httpclient

import "errors"

// Sentinel errors for HTTP client construction.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidProxy indicates the proxy URL is malformed or uses an
	// unsupported scheme.
	ErrInvalidProxy = errors.New("httpclient: invalid proxy")
)
