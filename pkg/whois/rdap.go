// Package whois resolves the registration owner of an IP address over
// RDAP. Lookups are retried a bounded number of times inside a cumulative
// time budget; every failure surfaces as ErrLookupFailed.
package whois

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/openrdap/rdap"
	"github.com/openrdap/rdap/bootstrap"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/duration"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/httpclient"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/retry"
)

// Looker returns the ownership record for one address.
type Looker interface {
	Lookup(ctx context.Context, ip string) (*Ownership, error)
}

// Config controls lookup behaviour.
type Config struct {
	MaxAttempts    int           // attempts per lookup (5)
	ConnectTimeout time.Duration // per-attempt request timeout (10s)
	Budget         time.Duration // cumulative limit for all attempts (60s)
	RetryDelay     time.Duration // first backoff delay
	Depth          int           // levels of linked entities to fetch (1)
	Server         string        // fixed RDAP base URL; empty uses IANA bootstrap
}

// DefaultConfig returns the standard lookup settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    defaults.RetryHigh,
		ConnectTimeout: duration.LookupConnect,
		Budget:         duration.LookupBudget,
		RetryDelay:     duration.LookupRetryDelay,
		Depth:          defaults.LookupDepth,
	}
}

// RDAPClient implements Looker over RDAP.
type RDAPClient struct {
	cfg        Config
	server     *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures an RDAPClient.
type Option func(*RDAPClient)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *RDAPClient) { c.logger = l }
}

// WithHTTPClient sets the HTTP client used for registry and bootstrap requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RDAPClient) { c.httpClient = hc }
}

// NewRDAPClient creates a lookup client. Zero fields in cfg take defaults.
func NewRDAPClient(cfg Config, opts ...Option) (*RDAPClient, error) {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Depth < 0 || cfg.Depth > defaults.MaxLookupDepth {
		return nil, fmt.Errorf("lookup depth %d out of range 0-%d", cfg.Depth, defaults.MaxLookupDepth)
	}

	c := &RDAPClient{cfg: cfg, logger: slog.Default()}
	if cfg.Server != "" {
		u, err := url.Parse(cfg.Server)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid rdap server %q", cfg.Server)
		}
		c.server = u
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.MustNew(httpclient.Config{UserAgent: defaults.UserAgent("lookup")})
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *RDAPClient) Config() Config { return c.cfg }

// Lookup fetches the network record covering ip.
func (c *RDAPClient) Lookup(ctx context.Context, ip string) (*Ownership, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, fmt.Errorf("%w: %w: %q", ErrLookupFailed, ErrInvalidIP, ip)
	}

	// The bootstrap registry cache is not safe for concurrent use, so each
	// lookup gets its own client over the shared transport.
	client := &rdap.Client{
		HTTP:      c.httpClient,
		Bootstrap: &bootstrap.Client{HTTP: c.httpClient},
	}

	rc := retry.Config{
		MaxAttempts: c.cfg.MaxAttempts,
		InitDelay:   c.cfg.RetryDelay,
		MaxDelay:    duration.LookupRetryMax,
		Strategy:    retry.Exponential,
		Jitter:      true,
		Budget:      c.cfg.Budget,
	}

	var (
		network *rdap.IPNetwork
		attempt int
	)
	err := retry.Do(ctx, rc, func(ctx context.Context) error {
		attempt++
		n, err := c.fetch(ctx, client, addr)
		if err != nil {
			c.logger.Debug("rdap attempt failed",
				slog.String("ip", ip),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		network = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, ip, err)
	}
	return ownershipFromRDAP(network), nil
}

func (c *RDAPClient) fetch(ctx context.Context, client *rdap.Client, addr net.IP) (*rdap.IPNetwork, error) {
	req := c.newRequest(ctx, addr)

	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(resp, err)
	}
	network, ok := resp.Object.(*rdap.IPNetwork)
	if !ok {
		return nil, retry.Stop(fmt.Errorf("unexpected rdap object %T", resp.Object))
	}
	return network, nil
}

func (c *RDAPClient) newRequest(ctx context.Context, addr net.IP) *rdap.Request {
	req := rdap.NewIPRequest(addr).WithContext(ctx)
	req.Timeout = c.cfg.ConnectTimeout
	if c.server != nil {
		req = req.WithServer(c.server)
	}
	if c.cfg.Depth > 0 {
		req.FetchRoles = []string{"all"}
	}
	return req
}

// classify marks answers that cannot improve on retry as terminal and
// honours Retry-After on throttled responses.
func classify(resp *rdap.Response, err error) error {
	var ce *rdap.ClientError
	if errors.As(err, &ce) {
		switch ce.Type {
		case rdap.InputError, rdap.BootstrapNotSupported, rdap.BootstrapNoMatch,
			rdap.WrongResponseType, rdap.ObjectDoesNotExist:
			return retry.Stop(err)
		}
	}
	if wait := retryAfter(resp); wait > 0 {
		return retry.After(err, wait)
	}
	return err
}

func retryAfter(resp *rdap.Response) time.Duration {
	if resp == nil {
		return 0
	}
	for _, hr := range resp.HTTP {
		if hr == nil || hr.Response == nil || hr.Response.StatusCode != http.StatusTooManyRequests {
			continue
		}
		if secs, err := strconv.Atoi(hr.Response.Header.Get("Retry-After")); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
