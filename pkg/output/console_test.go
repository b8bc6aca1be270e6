package output

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/enrich"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/screenshot"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/search"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/testutil"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/ui"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/whois"
)

func init() {
	ui.SetNoColor(true)
}

func sampleRecord() enrich.Record {
	return enrich.Record{
		Match: search.Match{
			IP: "203.0.113.5", Port: 8080, Transport: "tcp",
			Hostnames: []string{"leader.example"},
			Data:      map[string]any{"data": "X-Marathon-Leader: http://203.0.113.5:8080"},
		},
		Ownership: &whois.Ownership{
			Handle: "NET-1", Name: "EXAMPLE-NET", Country: "US",
			StartAddress: "203.0.113.0", EndAddress: "203.0.113.255",
			CIDRs:    []string{"203.0.113.0/24"},
			Entities: []whois.Entity{{Handle: "ORG-1", Name: "Example Inc", Email: "noc@example.net", Roles: []string{"registrant"}}},
		},
		Snapshot: &screenshot.Snapshot{URL: "http://203.0.113.5:8080/", Size: 1234, Base64: "iVBORw0KGgo=", Duration: 1500 * time.Millisecond},
	}
}

func TestConsole_Emit(t *testing.T) {
	var buf testutil.SyncBuffer
	c := NewConsole(&buf)

	require.NoError(t, c.Emit(sampleRecord()))
	out := buf.String()

	for _, want := range []string{
		"203.0.113.5:8080",
		"leader.example",
		"EXAMPLE-NET",
		"203.0.113.0/24",
		"203.0.113.0 - 203.0.113.255",
		"ORG-1 Example Inc <noc@example.net> (registrant)",
		"http://203.0.113.5:8080/",
		"1234 bytes",
		"X-Marathon-Leader",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "iVBORw0KGgo=", "image omitted by default")
	assert.Len(t, buf.Writes(), 1, "one write per record")
}

func TestConsole_EmitMissingParts(t *testing.T) {
	var buf testutil.SyncBuffer
	c := NewConsole(&buf, WithData(false), WithImage(true))

	rec := enrich.Record{
		Match:  search.Match{IP: "2001:db8::1", Port: 80, Data: map[string]any{"x": 1}},
		Errors: []string{"whois: lookup failed: timeout"},
	}
	require.NoError(t, c.Emit(rec))
	out := buf.String()

	assert.Contains(t, out, "[2001:db8::1]:80")
	assert.Contains(t, out, "unavailable")
	assert.Contains(t, out, "whois: lookup failed: timeout")
	assert.NotContains(t, out, "screenshot")
	assert.NotContains(t, out, `"x"`)
}

func TestConsole_WithImage(t *testing.T) {
	var buf testutil.SyncBuffer
	require.NoError(t, NewConsole(&buf, WithImage(true)).Emit(sampleRecord()))
	assert.Contains(t, buf.String(), "iVBORw0KGgo=")
}

func TestConsole_ConcurrentEmitsDoNotInterleave(t *testing.T) {
	var buf testutil.SyncBuffer
	c := NewConsole(&buf)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := sampleRecord()
			rec.Match.IP = fmt.Sprintf("10.0.0.%d", i)
			rec.Match.Data = nil
			_ = c.Emit(rec)
		}(i)
	}
	wg.Wait()

	writes := buf.Writes()
	require.Len(t, writes, n)
	for _, w := range writes {
		assert.Equal(t, 1, strings.Count(w, "10.0.0."), "each write holds exactly one record header")
	}
}

func TestConsole_WriteError(t *testing.T) {
	c := NewConsole(&testutil.FailingWriter{})
	assert.ErrorIs(t, c.Emit(sampleRecord()), testutil.ErrFault)
}

func TestConsole_Summary(t *testing.T) {
	var buf testutil.SyncBuffer
	require.NoError(t, NewConsole(&buf).Summary(enrich.Summary{Total: 4200, Matches: 100, Emitted: 100, LookupFailures: 2}))
	out := buf.String()
	assert.Contains(t, out, "total: 4200")
	assert.Contains(t, out, "emitted: 100")
	assert.Contains(t, out, "lookup failures: 2")
}
