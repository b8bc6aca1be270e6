// Package output prints enriched records to the console. Each record is
// rendered in full first and then written with one locked Write call, so
// records from concurrent workers never interleave.
package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/enrich"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/jsonutil"
	"github.com/lloesche/open-mesosphere-service-notifier/pkg/ui"
)

// Console writes human-readable record dumps.
type Console struct {
	mu           sync.Mutex
	w            io.Writer
	includeImage bool
	includeData  bool
	width        int
}

// Option configures a Console.
type Option func(*Console)

// WithImage prints the full base64 PNG of each screenshot.
func WithImage(on bool) Option {
	return func(c *Console) { c.includeImage = on }
}

// WithData prints the provider's raw record for each match.
func WithData(on bool) Option {
	return func(c *Console) { c.includeData = on }
}

// NewConsole creates a console printer over w.
func NewConsole(w io.Writer, opts ...Option) *Console {
	c := &Console{w: w, includeData: true, width: 60}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ enrich.Emitter = (*Console)(nil)

// Emit writes one record.
func (c *Console) Emit(rec enrich.Record) error {
	return c.write(c.render(rec))
}

// Summary writes the end-of-run totals.
func (c *Console) Summary(sum enrich.Summary) error {
	var b bytes.Buffer
	fmt.Fprintln(&b, ui.Divider(c.width))
	fmt.Fprintf(&b, "%s  %s  %s  %s  %s\n",
		ui.Stat("total", sum.Total),
		ui.Stat("matches", sum.Matches),
		ui.Stat("emitted", sum.Emitted),
		ui.Stat("lookup failures", sum.LookupFailures),
		ui.Stat("screenshot failures", sum.SnapshotFailures))
	return c.write(b.Bytes())
}

func (c *Console) write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(p)
	return err
}

func (c *Console) render(rec enrich.Record) []byte {
	var b bytes.Buffer
	m := rec.Match

	fmt.Fprintln(&b, ui.TitleStyle.Render(m.Addr()))
	field(&b, "transport", m.Transport)
	field(&b, "hostnames", strings.Join(m.Hostnames, ", "))
	field(&b, "org", m.Org)
	field(&b, "seen", m.Timestamp)

	if o := rec.Ownership; o != nil {
		fmt.Fprintln(&b, ui.SectionStyle.Render("ownership"))
		field(&b, "name", o.Name)
		field(&b, "handle", o.Handle)
		field(&b, "range", rangeOf(o.StartAddress, o.EndAddress))
		field(&b, "cidr", strings.Join(o.CIDRs, ", "))
		field(&b, "country", o.Country)
		field(&b, "type", o.Type)
		field(&b, "parent", o.ParentHandle)
		field(&b, "status", strings.Join(o.Status, ", "))
		for _, e := range o.Entities {
			field(&b, "entity", entityLine(e.Handle, e.Name, e.Email, e.Roles))
		}
		if o.RegistryURL != "" {
			field(&b, "registry", ui.URLStyle.Render(o.RegistryURL))
		}
	} else {
		field(&b, "ownership", ui.WarningStyle.Render("unavailable"))
	}

	if s := rec.Snapshot; s != nil {
		fmt.Fprintln(&b, ui.SectionStyle.Render("screenshot"))
		field(&b, "url", ui.URLStyle.Render(s.URL))
		field(&b, "size", fmt.Sprintf("%d bytes in %s", s.Size, s.Duration.Round(time.Millisecond)))
		if c.includeImage {
			field(&b, "png", s.Base64)
		}
	}

	for _, e := range rec.Errors {
		field(&b, "error", ui.ErrorStyle.Render(e))
	}

	if c.includeData && len(m.Data) > 0 {
		if data, err := jsonutil.MarshalIndent(m.Data, "  "); err == nil {
			fmt.Fprintln(&b, ui.SectionStyle.Render("data"))
			b.Write(data)
			b.WriteByte('\n')
		}
	}
	fmt.Fprintln(&b, ui.Divider(c.width))
	return b.Bytes()
}

func field(b *bytes.Buffer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s %s\n", ui.LabelStyle.Render(label), value)
}

func rangeOf(start, end string) string {
	if start == "" && end == "" {
		return ""
	}
	return start + " - " + end
}

func entityLine(handle, name, email string, roles []string) string {
	parts := []string{handle}
	if name != "" {
		parts = append(parts, name)
	}
	if email != "" {
		parts = append(parts, "<"+email+">")
	}
	if len(roles) > 0 {
		parts = append(parts, "("+strings.Join(roles, ", ")+")")
	}
	return strings.Join(parts, " ")
}
