// Package metrics records per-run enrichment counters in a private
// Prometheus registry. The notifier never listens; when a Pushgateway is
// configured the registry is pushed once at the end of the run.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
)

// Outcome labels used on the lookup and snapshot counters.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder holds the run's collectors.
type Recorder struct {
	registry *prometheus.Registry
	runID    string

	searchTotal    prometheus.Gauge
	matchesTotal   prometheus.Counter
	recordsTotal   prometheus.Counter
	lookupsTotal   *prometheus.CounterVec
	snapshotsTotal *prometheus.CounterVec
	panicsTotal    prometheus.Counter
	inFlight       prometheus.Gauge
	taskSeconds    prometheus.Histogram
}

// New creates a recorder with its own registry.
func New(runID string) (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runID:    runID,
	}
	ns := defaults.MetricsNamespace

	r.searchTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "search_total_results",
		Help: "Total hits the search provider reported for the query",
	})
	r.matchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "matches_total",
		Help: "Matches handed to the enrichment pool",
	})
	r.recordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "records_emitted_total",
		Help: "Enriched records written to output",
	})
	r.lookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "lookups_total",
		Help: "Ownership lookups by outcome",
	}, []string{"outcome"})
	r.snapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "snapshots_total",
		Help: "Screenshot captures by outcome",
	}, []string{"outcome"})
	r.panicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "task_panics_total",
		Help: "Enrichment tasks that panicked",
	})
	r.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "tasks_in_flight",
		Help: "Enrichment tasks currently running",
	})
	r.taskSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Name: "task_duration_seconds",
		Help:    "Wall time of one enrichment task",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	for _, c := range []prometheus.Collector{
		r.searchTotal, r.matchesTotal, r.recordsTotal, r.lookupsTotal,
		r.snapshotsTotal, r.panicsTotal, r.inFlight, r.taskSeconds,
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// SearchCompleted records the provider total and the number of matches.
func (r *Recorder) SearchCompleted(total, matches int) {
	if r == nil {
		return
	}
	r.searchTotal.Set(float64(total))
	r.matchesTotal.Add(float64(matches))
}

// TaskStarted marks a task as running.
func (r *Recorder) TaskStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

// TaskFinished marks a task as done after d.
func (r *Recorder) TaskFinished(d time.Duration) {
	if r == nil {
		return
	}
	r.inFlight.Dec()
	r.taskSeconds.Observe(d.Seconds())
}

// Lookup counts one lookup outcome.
func (r *Recorder) Lookup(outcome string) {
	if r == nil {
		return
	}
	r.lookupsTotal.WithLabelValues(outcome).Inc()
}

// Snapshot counts one snapshot outcome.
func (r *Recorder) Snapshot(outcome string) {
	if r == nil {
		return
	}
	r.snapshotsTotal.WithLabelValues(outcome).Inc()
}

// Panic counts a recovered task panic.
func (r *Recorder) Panic() {
	if r == nil {
		return
	}
	r.panicsTotal.Inc()
}

// Emitted counts a record written to output.
func (r *Recorder) Emitted() {
	if r == nil {
		return
	}
	r.recordsTotal.Inc()
}

// Push sends the registry to a Pushgateway, grouped by run id.
func (r *Recorder) Push(ctx context.Context, gatewayURL string, client *http.Client) error {
	if r == nil || gatewayURL == "" {
		return nil
	}
	p := push.New(gatewayURL, defaults.MetricsNamespace).
		Gatherer(r.registry).
		Grouping("run_id", r.runID)
	if client != nil {
		p = p.Client(client)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
