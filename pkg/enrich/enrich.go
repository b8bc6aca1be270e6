// Package enrich runs one search and fans the matches out to a bounded
// worker pool. Each worker attaches ownership data and, when a browser is
// available, a screenshot, then emits the record immediately.
//
// Only a failed search stops a run. A failing lookup, capture or even a
// panicking task still yields a record for its match.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/metrics"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/screenshot"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/search"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/whois"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/workerpool"
)

// Orchestrator wires the three clients to an emitter.
type Orchestrator struct {
	searcher search.Searcher
	looker   whois.Looker
	capturer screenshot.Capturer
	emitter  Emitter

	workers int
	runID   string
	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithWorkers sets the pool size (default 10).
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithTracer records a span per run and per task.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithRunID sets the run identifier attached to logs and spans.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.runID = id
		}
	}
}

// New creates an orchestrator. A nil capturer means screenshots are off.
func New(s search.Searcher, l whois.Looker, c screenshot.Capturer, e Emitter, opts ...Option) *Orchestrator {
	if c == nil {
		c = screenshot.Disabled{}
	}
	o := &Orchestrator{
		searcher: s,
		looker:   l,
		capturer: c,
		emitter:  e,
		workers:  defaults.Workers,
		runID:    uuid.NewString(),
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunID returns the identifier of this orchestrator's runs.
func (o *Orchestrator) RunID() string { return o.runID }

// run holds the per-run counters shared by tasks.
type run struct {
	*Orchestrator
	logger *slog.Logger

	emitted, emitFailures atomic.Int64
	lookupFailures        atomic.Int64
	snapshotFailures      atomic.Int64
	panics                atomic.Int64
}

// Run searches for query, enriches every match and returns once every
// scheduled record has been emitted. The error is non-nil only when the
// search itself failed, in which case nothing was emitted.
//
// Cancelling ctx stops scheduling; tasks already running finish with a
// cancelled context and still emit.
func (o *Orchestrator) Run(ctx context.Context, query string) (Summary, error) {
	start := time.Now()
	r := &run{Orchestrator: o, logger: o.logger.With(slog.String("run_id", o.runID))}
	sum := Summary{RunID: o.runID, Query: query}

	ctx, span := o.tracer.Start(ctx, "enrich.run", trace.WithAttributes(
		attribute.String("notifier.run_id", o.runID),
		attribute.String("search.query", query),
		attribute.Int("enrich.workers", o.workers),
	))
	defer span.End()

	res, err := o.searcher.Search(ctx, query)
	if err != nil {
		r.logger.Error("search failed", slog.String("query", query), slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		sum.Duration = time.Since(start)
		return sum, err
	}

	sum.Total = res.Total
	sum.Matches = len(res.Matches)
	o.metrics.SearchCompleted(res.Total, len(res.Matches))
	span.SetAttributes(
		attribute.Int("search.total", res.Total),
		attribute.Int("search.matches", len(res.Matches)),
	)
	r.logger.Info("search complete",
		slog.String("query", query),
		slog.Int("total", res.Total),
		slog.Int("matches", len(res.Matches)))

	pool := workerpool.New(o.workers, workerpool.WithPanicHandler(func(p any) {
		// Tasks recover their own panics; this only fires if emit panics.
		r.panics.Add(1)
		r.logger.Error("worker recovered panic", slog.Any("panic", p))
	}))

	for i, m := range res.Matches {
		if !pool.SubmitCtx(ctx, func() { r.enrich(ctx, m) }) {
			r.logger.Warn("run cancelled, remaining matches not enriched",
				slog.Int("skipped", len(res.Matches)-i))
			break
		}
		sum.Scheduled++
	}
	pool.Close()

	sum.Emitted = int(r.emitted.Load())
	sum.EmitFailures = int(r.emitFailures.Load())
	sum.LookupFailures = int(r.lookupFailures.Load())
	sum.SnapshotFailures = int(r.snapshotFailures.Load())
	sum.Panics = int(r.panics.Load())
	sum.Duration = time.Since(start)

	span.SetAttributes(attribute.Int("enrich.emitted", sum.Emitted))
	r.logger.Info("enrichment complete",
		slog.Int("emitted", sum.Emitted),
		slog.Int("lookup_failures", sum.LookupFailures),
		slog.Int("snapshot_failures", sum.SnapshotFailures),
		slog.Int("panics", sum.Panics),
		slog.Duration("duration", sum.Duration))
	return sum, nil
}

// enrich builds and emits the record for one match.
func (r *run) enrich(ctx context.Context, m search.Match) {
	start := time.Now()
	r.metrics.TaskStarted()
	ctx, span := r.tracer.Start(ctx, "enrich.task", trace.WithAttributes(
		attribute.String("match.ip", m.IP),
		attribute.Int("match.port", m.Port),
	))

	rec := Record{Match: m}
	defer func() {
		if p := recover(); p != nil {
			r.recordPanic(span, m, &PanicError{Value: p})
			rec.Errors = append(rec.Errors, fmt.Sprintf("panic: %v", p))
		}
		r.emit(rec)
		span.End()
		r.metrics.TaskFinished(time.Since(start))
	}()

	if err := m.Validate(); err != nil {
		r.logger.Warn("match not enrichable", slog.String("ip", m.IP), slog.Int("port", m.Port), slog.String("error", err.Error()))
		rec.Errors = append(rec.Errors, err.Error())
		r.metrics.Lookup(metrics.OutcomeSkipped)
		r.metrics.Snapshot(metrics.OutcomeSkipped)
		span.SetStatus(codes.Error, "invalid match")
		return
	}

	var (
		wg        sync.WaitGroup
		own       *whois.Ownership
		snap      *screenshot.Snapshot
		lookupErr error
		snapErr   error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		lookupErr = guard(func() error {
			var err error
			own, err = r.looker.Lookup(ctx, m.IP)
			return err
		})
	}()

	if r.capturer.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapErr = guard(func() error {
				var err error
				snap, err = r.capturer.Capture(ctx, m.IP, m.Port)
				return err
			})
		}()
	} else {
		r.metrics.Snapshot(metrics.OutcomeSkipped)
	}
	wg.Wait()

	if lookupErr != nil {
		own = nil
		rec.Errors = append(rec.Errors, lookupErr.Error())
		r.lookupFailed(span, m, lookupErr)
	} else {
		r.metrics.Lookup(metrics.OutcomeOK)
	}
	rec.Ownership = own

	if r.capturer.Enabled() {
		if snapErr != nil {
			snap = nil
			rec.Errors = append(rec.Errors, snapErr.Error())
			r.snapshotFailed(span, m, snapErr)
		} else {
			r.metrics.Snapshot(metrics.OutcomeOK)
		}
		rec.Snapshot = snap
	}
}

func (r *run) lookupFailed(span trace.Span, m search.Match, err error) {
	var pe *PanicError
	if errors.As(err, &pe) {
		r.recordPanic(span, m, pe)
	} else {
		r.logger.Warn("ownership lookup failed", slog.String("ip", m.IP), slog.String("error", err.Error()))
		span.RecordError(err)
	}
	r.lookupFailures.Add(1)
	r.metrics.Lookup(metrics.OutcomeFailed)
}

func (r *run) snapshotFailed(span trace.Span, m search.Match, err error) {
	var pe *PanicError
	if errors.As(err, &pe) {
		r.recordPanic(span, m, pe)
	} else {
		r.logger.Warn("screenshot failed", slog.String("target", screenshot.TargetURL(m.IP, m.Port)), slog.String("error", err.Error()))
		span.RecordError(err)
	}
	r.snapshotFailures.Add(1)
	r.metrics.Snapshot(metrics.OutcomeFailed)
}

func (r *run) recordPanic(span trace.Span, m search.Match, pe *PanicError) {
	r.panics.Add(1)
	r.metrics.Panic()
	attrs := []any{slog.String("ip", m.IP), slog.Int("port", m.Port), slog.Any("panic", pe.Value)}
	if len(pe.Stack) > 0 {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	r.logger.Error("enrichment task panicked", attrs...)
	span.RecordError(pe)
	span.SetStatus(codes.Error, "panic")
}

func (r *run) emit(rec Record) {
	if err := r.emitter.Emit(rec); err != nil {
		r.emitFailures.Add(1)
		r.logger.Error("emit failed", slog.String("ip", rec.Match.IP), slog.String("error", err.Error()))
		return
	}
	r.emitted.Add(1)
	r.metrics.Emitted()
}
