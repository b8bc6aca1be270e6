package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

var supportedProxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks5":  true,
	"socks5h": true, // DNS resolved on the proxy
}

// ProxyConfig holds a parsed proxy URL.
type ProxyConfig struct {
	URL      *url.URL
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
	IsSOCKS  bool
}

// ParseProxyURL validates and parses a proxy URL. Supported schemes are
// http, https, socks5 and socks5h.
// It returns nil, nil for an empty string. A missing scheme means http.
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, nil
	}
	if !strings.Contains(proxyURL, "://") {
		proxyURL = "http://" + proxyURL
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !supportedProxySchemes[scheme] {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidProxy)
	}

	port := parsed.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "8080"
		case "https":
			port = "8443"
		default:
			port = "1080"
		}
	}

	pc := &ProxyConfig{
		URL:     parsed,
		Scheme:  scheme,
		Host:    parsed.Hostname(),
		Port:    port,
		IsSOCKS: strings.HasPrefix(scheme, "socks"),
	}
	if parsed.User != nil {
		pc.Username = parsed.User.Username()
		pc.Password, _ = parsed.User.Password()
	}
	return pc, nil
}

// Address returns the proxy address in host:port form.
func (p *ProxyConfig) Address() string {
	if p == nil {
		return ""
	}
	return net.JoinHostPort(p.Host, p.Port)
}

// ContextDialer is implemented by dialers usable as http.Transport.DialContext.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// timeoutDialer adds a dial timeout to proxy dialers that lack one.
type timeoutDialer struct {
	dialer  proxy.Dialer
	timeout time.Duration
}

func (t *timeoutDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if cd, ok := t.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := t.dialer.Dial(network, address)
		ch <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			// Close a connection that lands after the deadline.
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("proxy dial: %w", ctx.Err())
	case r := <-ch:
		return r.conn, r.err
	}
}

// CreateSOCKSDialer builds a SOCKS dialer for pc.
func CreateSOCKSDialer(pc *ProxyConfig, timeout time.Duration) (ContextDialer, error) {
	if pc == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidProxy)
	}

	scheme := pc.Scheme
	if scheme == "socks5h" {
		// x/net/proxy passes hostnames through, so the proxy resolves them.
		scheme = "socks5"
	}
	u := &url.URL{Scheme: scheme, Host: pc.Address()}
	if pc.Username != "" {
		u.User = url.UserPassword(pc.Username, pc.Password)
	}

	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	return &timeoutDialer{dialer: d, timeout: timeout}, nil
}
