package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
)

// Global UI state
var (
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		// Use ASCII profile to disable colors
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

const bannerSeparator = "________________________________________________"

// PrintBanner writes the one-line tool banner.
func PrintBanner(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", BannerStyle.Render(defaults.ToolName), VersionStyle.Render("v"+defaults.Version))
}

// PrintConfig writes " :: Name : Value" lines in the given order, skipping
// empty values, followed by a separator.
func PrintConfig(w io.Writer, keys []string, values map[string]string) {
	for _, k := range keys {
		v, ok := values[k]
		if !ok || v == "" {
			continue
		}
		fmt.Fprintf(w, " :: %s : %s\n", LabelStyle.Render(k), ValueStyle.Render(v))
	}
	fmt.Fprintln(w, DividerStyle.Render(bannerSeparator))
}

// Divider returns a horizontal rule of width n.
func Divider(n int) string {
	if n <= 0 {
		n = len(bannerSeparator)
	}
	return DividerStyle.Render(strings.Repeat("-", n))
}

// Stat renders "label: value" for summary lines.
func Stat(label string, value any) string {
	return StatLabelStyle.Render(label+":") + " " + StatValueStyle.Render(fmt.Sprint(value))
}
