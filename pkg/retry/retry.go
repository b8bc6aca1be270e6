// Package retry provides the retry engine used by the registry lookup
// client: bounded attempts, backoff between them, and an optional
// cumulative budget that caps the whole call including every wait.
//
// Usage:
//
//	err := retry.Do(ctx, retry.Config{MaxAttempts: 5, Budget: time.Minute}, func() error {
//	    return lookupOnce(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy defines the backoff algorithm.
type Strategy int

const (
	// Exponential doubles the delay each attempt: initDelay * 2^attempt.
	Exponential Strategy = iota
	// Linear increases the delay linearly: initDelay * (attempt+1).
	Linear
	// Constant uses the same delay between every attempt.
	Constant
)

// Config controls retry behaviour.
type Config struct {
	MaxAttempts int           // Total attempts (including the first). 0 means no-op.
	InitDelay   time.Duration // Base delay before first retry.
	MaxDelay    time.Duration // Upper bound on any single delay.
	Strategy    Strategy      // Backoff algorithm.
	Jitter      bool          // Add ±25% random jitter to each delay.
	Budget      time.Duration // Cumulative limit for all attempts and waits. 0 means none.
}

// DefaultConfig returns 3 attempts, exponential backoff from 1s to 30s
// with jitter and no cumulative budget.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Strategy:    Exponential,
		Jitter:      true,
	}
}

// StopError wraps an error to signal that retrying should stop immediately.
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so that Do returns it without further retries.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &StopError{Err: err}
}

// AfterError asks Do to wait at least Wait before the next attempt.
// Servers that answer 429 with Retry-After are mapped to this.
type AfterError struct {
	Err  error
	Wait time.Duration
}

func (e *AfterError) Error() string { return e.Err.Error() }
func (e *AfterError) Unwrap() error { return e.Err }

// After wraps err with a minimum wait before the next attempt.
func After(err error, wait time.Duration) error {
	if err == nil {
		return nil
	}
	return &AfterError{Err: err, Wait: wait}
}

// ErrBudgetExceeded is returned when the next wait would cross the budget.
var ErrBudgetExceeded = errors.New("retry: budget exceeded")

// sleeper is an interface for waiting, allowing tests to override time.After.
type sleeper interface {
	sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between failures
// according to the configured strategy. It returns nil on the first
// successful call, or the last error if all attempts fail.
//
// With a Budget, fn receives a context that expires when the budget is
// spent, and a wait that would end past the budget returns the last error
// joined with ErrBudgetExceeded instead of sleeping.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	return doWithSleeper(ctx, cfg, fn, realSleeper{})
}

func doWithSleeper(ctx context.Context, cfg Config, fn func(ctx context.Context) error, s sleeper) error {
	if cfg.MaxAttempts <= 0 {
		return nil
	}

	if cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Budget)
		defer cancel()
	}

	var lastErr error
	for attempt := range cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Join(lastErr, err)
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var stop *StopError
		if errors.As(lastErr, &stop) {
			return stop.Err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := CalcDelay(cfg, attempt)
		var after *AfterError
		if errors.As(lastErr, &after) && after.Wait > delay {
			delay = after.Wait
		}
		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
			return errors.Join(lastErr, ErrBudgetExceeded)
		}
		if err := s.sleep(ctx, delay); err != nil {
			return errors.Join(lastErr, err)
		}
	}
	return lastErr
}

// CalcDelay computes the sleep duration for a given attempt (0-indexed).
// The result is always within [0, MaxDelay] when MaxDelay is set.
func CalcDelay(cfg Config, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	var f float64
	switch cfg.Strategy {
	case Exponential:
		f = float64(cfg.InitDelay) * math.Pow(2, float64(attempt))
	case Linear:
		f = float64(cfg.InitDelay) * float64(attempt+1)
	case Constant:
		f = float64(cfg.InitDelay)
	}

	var delay time.Duration
	if math.IsInf(f, 0) || math.IsNaN(f) || f >= math.MaxInt64 {
		delay = time.Duration(math.MaxInt64)
	} else {
		delay = time.Duration(f)
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if cfg.Jitter && delay > 0 {
		quarter := int64(delay) / 4
		if quarter > 0 {
			j := time.Duration(rand.Int64N(quarter))
			if rand.IntN(2) == 0 {
				delay += j
			} else {
				delay -= j
			}
		}
	}
	return delay
}
