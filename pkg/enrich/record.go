package enrich

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/screenshot"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/search"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/whois"
)

// Record is the enriched result for one match. Exactly one is emitted per
// match; Ownership and Snapshot are nil when unavailable.
type Record struct {
	Match     search.Match         `json:"match"`
	Ownership *whois.Ownership     `json:"ownership,omitempty"`
	Snapshot  *screenshot.Snapshot `json:"snapshot,omitempty"`
	Errors    []string             `json:"errors,omitempty"`
}

// Emitter receives records as soon as they are complete. Emit is called
// from several goroutines at once.
type Emitter interface {
	Emit(Record) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Record) error

// Emit calls f(r).
func (f EmitterFunc) Emit(r Record) error { return f(r) }

// Summary describes a finished run.
type Summary struct {
	RunID            string        `json:"run_id"`
	Query            string        `json:"query"`
	Total            int           `json:"total"`
	Matches          int           `json:"matches"`
	Scheduled        int           `json:"scheduled"`
	Emitted          int           `json:"emitted"`
	EmitFailures     int           `json:"emit_failures"`
	LookupFailures   int           `json:"lookup_failures"`
	SnapshotFailures int           `json:"snapshot_failures"`
	Panics           int           `json:"panics"`
	Duration         time.Duration `json:"duration"`
}

// PanicError is a panic recovered inside an enrichment step.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// guard runs fn and turns a panic into a *PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return fn()
}
