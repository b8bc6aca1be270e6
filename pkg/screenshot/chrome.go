package screenshot

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/duration"
)

// Chrome captures with a headless Chrome. Every capture launches its own
// browser process, so concurrent captures share nothing.
type Chrome struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Chrome capturer.
type Option func(*Chrome)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chrome) { c.logger = l }
}

// NewChrome creates a capturer for the browser at cfg.ExecPath.
func NewChrome(cfg Config, opts ...Option) *Chrome {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = def.PageTimeout
	}
	if cfg.WaitFor < 0 {
		cfg.WaitFor = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	c := &Chrome{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports true.
func (c *Chrome) Enabled() bool { return true }

// Capture loads http://host:port/ and returns a viewport PNG.
func (c *Chrome) Capture(ctx context.Context, host string, port int) (snap *Snapshot, err error) {
	target := TargetURL(host, port)

	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrSnapshotFailed, target, r)
		}
	}()

	start := time.Now()
	buf, err := c.capture(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotFailed, target, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: %s: empty image", ErrSnapshotFailed, target)
	}

	return &Snapshot{
		URL:       target,
		PNG:       buf,
		Base64:    base64.StdEncoding.EncodeToString(buf),
		Width:     c.cfg.Width,
		Height:    c.cfg.Height,
		Size:      len(buf),
		Duration:  time.Since(start),
		Timestamp: start,
	}, nil
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(c.cfg.ExecPath),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(c.cfg.Width, c.cfg.Height),
		chromedp.UserAgent(c.cfg.UserAgent),
	)
	if c.cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(c.cfg.Proxy))
	}
	return opts
}

func (c *Chrome) capture(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer c.shutdown(browserCtx, browserCancel, allocCancel)

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(c.cfg.Width), int64(c.cfg.Height)),
		chromedp.Navigate(target),
		chromedp.Sleep(c.cfg.WaitFor),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				Do(ctx)
			return err
		}),
	)
	return buf, err
}

// shutdown cancels the browser contexts and waits a bounded time for the
// browser to exit. The process group is killed afterwards on every path
// so renderer and GPU helpers never outlive a capture.
func (c *Chrome) shutdown(browserCtx context.Context, browserCancel, allocCancel context.CancelFunc) {
	// The process reference is gone once the contexts are cancelled.
	var proc *os.Process
	if bc := chromedp.FromContext(browserCtx); bc != nil && bc.Browser != nil {
		proc = bc.Browser.Process()
	}

	done := make(chan struct{})
	go func() {
		browserCancel()
		allocCancel()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(duration.BrowserShutdown):
		c.logger.Warn("browser shutdown timed out, force-killing")
	}
	killProcessTree(proc)
}
