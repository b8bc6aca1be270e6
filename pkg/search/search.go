// Package search wraps the host-search provider. A search returns the
// provider's total hit count and the matches it handed back, which may be
// fewer than the total because of paging limits.
package search

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrSearchUnavailable is returned for every provider failure: rejected
// key, exhausted quota, malformed query or an outage. No partial results
// accompany it.
var ErrSearchUnavailable = errors.New("search: provider unavailable")

// Match is one discovered service instance.
type Match struct {
	IP        string         `json:"ip"`
	Port      int            `json:"port"`
	Hostnames []string       `json:"hostnames,omitempty"`
	Transport string         `json:"transport,omitempty"`
	Org       string         `json:"org,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"` // provider record as returned
}

// Validate reports whether the match carries a usable address and port.
func (m Match) Validate() error {
	if net.ParseIP(m.IP) == nil {
		return fmt.Errorf("invalid ip %q", m.IP)
	}
	if m.Port < 0 || m.Port > 65535 {
		return fmt.Errorf("invalid port %d", m.Port)
	}
	return nil
}

// Addr returns host:port with IPv6 literals bracketed.
func (m Match) Addr() string {
	return net.JoinHostPort(m.IP, fmt.Sprint(m.Port))
}

// Result is the outcome of one search.
type Result struct {
	Total   int     `json:"total"`
	Matches []Match `json:"matches"`
}

// Searcher runs a search term against a provider.
type Searcher interface {
	Search(ctx context.Context, term string) (Result, error)
}

// ProviderError carries the provider's own explanation of a rejection.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Message)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
}
