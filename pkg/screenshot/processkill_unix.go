//go:build !windows

package screenshot

import (
	"os"

	"golang.org/x/sys/unix"
)

// killProcessTree kills a process and all its children. chromedp starts
// the browser in its own process group, so the negative pid reaches the
// renderer and GPU helpers too.
func killProcessTree(proc *os.Process) {
	if proc == nil {
		return
	}
	_ = unix.Kill(-proc.Pid, unix.SIGKILL)
	// The group kill misses a parent that was not made group leader.
	_ = proc.Kill()
}
