// Package cli holds process-level helpers for the notifier binary.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. Work in
// flight sees the cancellation and winds down; a second signal during
// gracePeriod exits the process with ExitFailure.
//
// Usage:
//
//	ctx, cancel := cli.SignalContext(context.Background(), duration.ShutdownGrace, logger)
//	defer cancel()
func SignalContext(parent context.Context, gracePeriod time.Duration, logger *slog.Logger) (context.Context, context.CancelFunc) {
	return signalContextWithNotifier(parent, gracePeriod, logger, nil, nil)
}

// signalContextWithNotifier is the internal implementation for testing.
// sigChan, if non-nil, overrides the real signal channel.
// exitFn, if non-nil, overrides os.Exit for testing.
func signalContextWithNotifier(
	parent context.Context,
	gracePeriod time.Duration,
	logger *slog.Logger,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = slog.Default()
	}

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}

	if exitFn == nil {
		exitFn = os.Exit
	}

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("interrupt received, finishing in-flight matches",
				slog.String("signal", sig.String()),
				slog.Duration("grace", gracePeriod))
			cancel()

			// Wait for a second signal or grace period.
			select {
			case <-sigChan:
				logger.Error("second interrupt, exiting immediately")
				exitFn(defaults.ExitFailure)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
		if ownChannel {
			signal.Stop(sigChan)
		}
	}()

	return ctx, cancel
}
