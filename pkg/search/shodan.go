package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/httpclient"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/iohelper"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/jsonutil"
)

// shodanPageSize is the number of matches Shodan returns per page.
const shodanPageSize = 100

// ShodanClient implements Searcher against the Shodan REST API.
type ShodanClient struct {
	apiKey     string
	baseURL    string
	pages      int
	httpClient *http.Client
	logger     *slog.Logger
}

// ShodanOption configures a ShodanClient.
type ShodanOption func(*ShodanClient)

// WithBaseURL points the client at another endpoint (tests, mirrors).
func WithBaseURL(u string) ShodanOption {
	return func(c *ShodanClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ShodanOption {
	return func(c *ShodanClient) { c.httpClient = hc }
}

// WithPages sets how many result pages to fetch (default 1).
func WithPages(n int) ShodanOption {
	return func(c *ShodanClient) {
		if n > 0 {
			c.pages = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ShodanOption {
	return func(c *ShodanClient) { c.logger = l }
}

// NewShodanClient creates a Shodan search client.
func NewShodanClient(apiKey string, opts ...ShodanOption) *ShodanClient {
	c := &ShodanClient{
		apiKey:  apiKey,
		baseURL: defaults.ShodanBaseURL,
		pages:   defaults.SearchPages,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.MustNew(httpclient.Config{UserAgent: defaults.UserAgent("search")})
	}
	return c
}

// Validate checks the client can issue requests.
func (c *ShodanClient) Validate() error {
	if c.apiKey == "" {
		return errors.New("shodan API key required")
	}
	return nil
}

type shodanPage struct {
	Total   int              `json:"total"`
	Matches []map[string]any `json:"matches"`
	Error   string           `json:"error"`
}

// Search runs term and returns the total and the matches of the first
// configured pages. Any failing page fails the whole search.
func (c *ShodanClient) Search(ctx context.Context, term string) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, unavailable(err)
	}
	if strings.TrimSpace(term) == "" {
		return Result{}, unavailable(errors.New("empty search term"))
	}

	var res Result
	for page := 1; page <= c.pages; page++ {
		p, err := c.fetchPage(ctx, term, page)
		if err != nil {
			return Result{}, unavailable(err)
		}
		res.Total = p.Total
		for _, raw := range p.Matches {
			res.Matches = append(res.Matches, matchFromShodan(raw))
		}
		c.logger.Debug("search page fetched",
			slog.Int("page", page),
			slog.Int("matches", len(p.Matches)),
			slog.Int("total", p.Total))

		if len(p.Matches) < shodanPageSize || len(res.Matches) >= p.Total {
			break
		}
	}
	return res, nil
}

func (c *ShodanClient) fetchPage(ctx context.Context, term string, page int) (*shodanPage, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("query", term)
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	endpoint := c.baseURL + "/shodan/host/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, redactAPIKey(err, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, redactAPIKey(err, c.apiKey)
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		perr := &ProviderError{StatusCode: resp.StatusCode}
		var body shodanPage
		if err := jsonutil.Unmarshal(iohelper.ReadBodyOrLog(resp.Body, c.logger), &body); err == nil {
			perr.Message = body.Error
		}
		return nil, perr
	}

	var p shodanPage
	if err := jsonutil.DecodeLimited(resp.Body, iohelper.LargeMaxBodySize, &p); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if p.Error != "" {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: p.Error}
	}
	return &p, nil
}

// matchFromShodan lifts the fields the notifier relies on out of a raw
// banner and keeps the banner itself as opaque metadata.
func matchFromShodan(raw map[string]any) Match {
	m := Match{Data: raw, Port: -1}
	if s, ok := raw["ip_str"].(string); ok {
		m.IP = s
	}
	if f, ok := raw["port"].(float64); ok {
		m.Port = int(f)
	}
	if s, ok := raw["transport"].(string); ok {
		m.Transport = s
	}
	if s, ok := raw["org"].(string); ok {
		m.Org = s
	}
	if s, ok := raw["timestamp"].(string); ok {
		m.Timestamp = s
	}
	if hs, ok := raw["hostnames"].([]any); ok {
		for _, h := range hs {
			if s, ok := h.(string); ok {
				m.Hostnames = append(m.Hostnames, s)
			}
		}
	}
	return m
}

// redactAPIKey removes the API key from error messages to prevent leakage in logs.
func redactAPIKey(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, key, "[REDACTED]"))
}
