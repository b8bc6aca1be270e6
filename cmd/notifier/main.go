// Command notifier finds exposed Marathon leaders through Shodan, looks
// up who owns each address, screenshots the service when a headless
// browser is available, and prints one record per match.
//
// Usage:
//
//	notifier --api-key KEY
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/cli"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/config"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/duration"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/enrich"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/httpclient"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/logging"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/metrics"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/output"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/screenshot"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/search"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/tracing"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/ui"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/whois"
)

func main() {
	ctx, cancel := cli.SignalContext(context.Background(), duration.ShutdownGrace, nil)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one notifier run and returns the process exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		fmt.Fprintf(stderr, "%s: %v\n", defaults.ToolName, err)
		return defaults.ExitFailure
	}

	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", defaults.ToolName, err)
		return defaults.ExitFailure
	}
	slog.SetDefault(logger)

	if cfg.Output.NoColor || !ui.ColorWanted(stdout) {
		ui.SetNoColor(true)
	}

	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))

	if ui.IsTerminal(stderr) {
		ui.PrintBanner(stderr)
		keys, vals := cfg.Summary()
		ui.PrintConfig(stderr, keys, vals)
	}

	n, err := newNotifier(ctx, cfg, runID, stdout, logger)
	if err != nil {
		logger.Error("setup failed", slog.String("error", err.Error()))
		return defaults.ExitFailure
	}
	defer n.close(logger)

	sum, err := n.orchestrator.Run(ctx, cfg.Query)
	if err != nil {
		return defaults.ExitFailure
	}
	if err := n.console.Summary(sum); err != nil {
		logger.Warn("write summary", slog.String("error", err.Error()))
	}
	return defaults.ExitSuccess
}

// notifier holds the wired components of one run.
type notifier struct {
	orchestrator *enrich.Orchestrator
	console      *output.Console
	metrics      *metrics.Recorder
	tracing      *tracing.Provider
	pushGateway  string
}

func newNotifier(ctx context.Context, cfg *config.Config, runID string, stdout io.Writer, logger *slog.Logger) (*notifier, error) {
	hc, err := httpclient.New(httpclient.Config{
		Timeout:   duration.HTTPAPI,
		Proxy:     cfg.Proxy,
		UserAgent: defaults.UserAgent(""),
	})
	if err != nil {
		return nil, err
	}

	searcher := search.NewShodanClient(cfg.APIKey,
		search.WithBaseURL(cfg.ShodanURL),
		search.WithPages(cfg.Pages),
		search.WithHTTPClient(hc),
		search.WithLogger(logger))

	looker, err := whois.NewRDAPClient(whois.Config{
		MaxAttempts:    cfg.Lookup.Attempts,
		ConnectTimeout: cfg.Lookup.ConnectTimeout,
		Budget:         cfg.Lookup.Budget,
		Depth:          cfg.Lookup.Depth,
		Server:         cfg.Lookup.Server,
	}, whois.WithHTTPClient(hc), whois.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	scfg := screenshot.DefaultConfig()
	scfg.Enabled = cfg.Screenshots.Enabled
	scfg.ExecPath = cfg.Screenshots.ExecPath
	scfg.PageTimeout = cfg.Screenshots.Timeout
	scfg.WaitFor = cfg.Screenshots.Wait
	scfg.Proxy = cfg.Proxy
	capturer := screenshot.Detect(scfg, logger)

	rec, err := metrics.New(runID)
	if err != nil {
		return nil, err
	}
	tp, err := tracing.Setup(ctx, cfg.Tracing, runID, logger)
	if err != nil {
		return nil, err
	}

	console := output.NewConsole(stdout,
		output.WithData(cfg.Output.Data),
		output.WithImage(cfg.Output.Image))

	orch := enrich.New(searcher, looker, capturer, console,
		enrich.WithWorkers(cfg.Workers),
		enrich.WithLogger(logger),
		enrich.WithMetrics(rec),
		enrich.WithTracer(tp.Tracer()),
		enrich.WithRunID(runID))

	return &notifier{
		orchestrator: orch,
		console:      console,
		metrics:      rec,
		tracing:      tp,
		pushGateway:  cfg.Metrics.PushGateway,
	}, nil
}

// close flushes telemetry. It runs on a fresh context so an interrupted
// run still exports what it recorded.
func (n *notifier) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), duration.TelemetryShutdown)
	defer cancel()

	if err := n.metrics.Push(ctx, n.pushGateway, nil); err != nil {
		logger.Warn("metrics push failed", slog.String("error", err.Error()))
	}
	if err := n.tracing.Shutdown(ctx); err != nil {
		logger.Warn("trace flush failed", slog.String("error", err.Error()))
	}
}
