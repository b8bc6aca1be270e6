package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r, err := New("run-1")
	require.NoError(t, err)

	r.SearchCompleted(4200, 3)
	r.TaskStarted()
	r.TaskStarted()
	r.TaskFinished(time.Second)
	r.Lookup(OutcomeOK)
	r.Lookup(OutcomeOK)
	r.Lookup(OutcomeFailed)
	r.Snapshot(OutcomeSkipped)
	r.Panic()
	r.Emitted()
	r.Emitted()

	assert.Equal(t, 4200.0, promtest.ToFloat64(r.searchTotal))
	assert.Equal(t, 3.0, promtest.ToFloat64(r.matchesTotal))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.inFlight))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.lookupsTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.lookupsTotal.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.snapshotsTotal.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.panicsTotal))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.recordsTotal))

	n, err := promtest.GatherAndCount(r.Registry(), "service_notifier_task_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SearchCompleted(1, 1)
		r.TaskStarted()
		r.TaskFinished(time.Millisecond)
		r.Lookup(OutcomeOK)
		r.Snapshot(OutcomeFailed)
		r.Panic()
		r.Emitted()
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.Push(context.Background(), "http://unused", nil))
}

func TestRecorder_Push(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, err := New("abc-123")
	require.NoError(t, err)
	r.Emitted()

	require.NoError(t, r.Push(context.Background(), srv.URL, srv.Client()))
	assert.Equal(t, "/metrics/job/service_notifier/run_id/abc-123", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestRecorder_PushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := New("run")
	require.NoError(t, err)
	err = r.Push(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "push metrics"))
}

func TestRecorder_PushDisabled(t *testing.T) {
	r, err := New("run")
	require.NoError(t, err)
	assert.NoError(t, r.Push(context.Background(), "", nil))
}
