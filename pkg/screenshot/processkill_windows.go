//go:build windows

package screenshot

import (
	"os"
	"os/exec"
	"strconv"
)

// killProcessTree kills a process and all its children.
// proc.Kill() only terminates the parent; Chrome's helpers would survive.
func killProcessTree(proc *os.Process) {
	if proc == nil {
		return
	}
	// /F = force, /T = tree
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(proc.Pid)).Run(); err != nil {
		_ = proc.Kill()
	}
}
