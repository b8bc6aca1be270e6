// Package httpclient builds the HTTP clients used to talk to the search
// provider and the registration registries. Both are plain outbound API
// clients: TLS is verified and redirects are followed, which RDAP
// bootstrap relies on.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: 60s)
	Timeout time.Duration

	// Proxy is an optional http, https, socks5 or socks5h proxy URL
	Proxy string

	// DialTimeout bounds establishing a connection (default: 10s)
	DialTimeout time.Duration

	// MaxConnsPerHost limits parallel connections to one API host (default: 10)
	MaxConnsPerHost int

	// UserAgent is set on requests that do not carry one already
	UserAgent string
}

// DefaultConfig returns defaults for API clients.
func DefaultConfig() Config {
	return Config{
		Timeout:         duration.HTTPAPI,
		DialTimeout:     duration.DialTimeout,
		MaxConnsPerHost: 10,
	}
}

// New creates an HTTP client from cfg. Zero fields fall back to
// DefaultConfig values. It fails only when the proxy URL is invalid.
func New(cfg Config) (*http.Client, error) {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       duration.IdleConnTimeout,
		TLSHandshakeTimeout:   duration.TLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	pc, err := ParseProxyURL(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if pc != nil {
		if pc.IsSOCKS {
			d, err := CreateSOCKSDialer(pc, cfg.DialTimeout)
			if err != nil {
				return nil, err
			}
			transport.Proxy = nil
			transport.DialContext = d.DialContext
		} else {
			transport.Proxy = http.ProxyURL(pc.URL)
		}
	}

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{base: transport, userAgent: cfg.UserAgent}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}, nil
}

// MustNew is New for configurations already validated by the caller.
func MustNew(cfg Config) *http.Client {
	c, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("httpclient: %v", err))
	}
	return c
}

// userAgentTransport sets a default User-Agent header.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", u.userAgent)
	return u.base.RoundTrip(r)
}
