package screenshot

import (
	"os"
	"os/exec"

	"github.com/lloesche/open-mesosphere-service-notifier/pkg/defaults"
)

// wellKnownPaths covers systems where the browser is installed but not on PATH.
var wellKnownPaths = []string{
	`/usr/bin/google-chrome`,
	`/usr/bin/chromium-browser`,
	`/usr/bin/chromium`,
	`/snap/bin/chromium`,
	`/Applications/Google Chrome.app/Contents/MacOS/Google Chrome`,
	`/Applications/Chromium.app/Contents/MacOS/Chromium`,
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// findBrowser returns the browser executable to launch. An explicit path
// must exist; otherwise PATH is searched first, then well-known locations.
func findBrowser(explicit string) (string, bool) {
	if explicit != "" {
		if p, err := exec.LookPath(explicit); err == nil {
			return p, true
		}
		return "", false
	}
	for _, name := range defaults.BrowserNames {
		if p, err := exec.LookPath(name); err == nil && p != "" {
			return p, true
		}
	}
	for _, p := range wellKnownPaths {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}
