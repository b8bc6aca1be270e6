package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/config"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/testutil"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestRun_MissingKeyExitsOne(t *testing.T) {
	var stdout, stderr testutil.SyncBuffer
	code := run(context.Background(), nil, env(nil), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "api-key")
	assert.Empty(t, stdout.String())
}

func TestRun_HelpExitsZero(t *testing.T) {
	var stdout, stderr testutil.SyncBuffer
	assert.Equal(t, 0, run(context.Background(), []string{"-h"}, env(nil), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--api-key")
}

func TestRun_SearchFailureExitsOne(t *testing.T) {
	shodan := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Invalid API key"}`)
	}))
	defer shodan.Close()

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shodan_url: "+shodan.URL+"\nscreenshots:\n  enabled: false\n"), 0o600))

	var stdout, stderr testutil.SyncBuffer
	code := run(context.Background(), []string{"--api-key", "bad"}, env(map[string]string{config.EnvConfigFile: path}), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Equal(t, 1, strings.Count(stderr.String(), "level=ERROR"))
	assert.NotContains(t, stderr.String(), "key=bad")
}

func TestRun_EndToEnd(t *testing.T) {
	shodan := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "X-Marathon-Leader", r.URL.Query().Get("query"))
		fmt.Fprint(w, `{"total":2,"matches":[
			{"ip_str":"203.0.113.5","port":8080,"transport":"tcp","hostnames":["leader.example"]},
			{"ip_str":"203.0.113.6","port":8080,"transport":"tcp"}]}`)
	}))
	defer shodan.Close()

	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		if strings.HasSuffix(r.URL.Path, "203.0.113.6") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"objectClassName":"ip network","handle":"NET-1","name":"EXAMPLE-NET",
			"startAddress":"203.0.113.0","endAddress":"203.0.113.255","country":"US"}`)
	}))
	defer registry.Close()

	cfgYAML := fmt.Sprintf(`shodan_url: %s
screenshots:
  enabled: false
lookup:
  server: %s
  depth: 0
  attempts: 2
output:
  no_color: true
`, shodan.URL, registry.URL)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfgYAML), 0o600))

	var stdout, stderr testutil.SyncBuffer
	code := run(context.Background(), []string{"--api-key", "k"}, env(map[string]string{config.EnvConfigFile: path}), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "203.0.113.5:8080")
	assert.Contains(t, out, "203.0.113.6:8080")
	assert.Contains(t, out, "EXAMPLE-NET")
	assert.Contains(t, out, "unavailable")
	assert.Contains(t, out, "emitted: 2")
	assert.Contains(t, stderr.String(), "screenshots disabled")
}
