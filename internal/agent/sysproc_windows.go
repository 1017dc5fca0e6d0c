//go:build windows

package agent

import (
	"os/exec"
	"time"
)

// setupProcessCleanup bounds the pipe wait on Windows. POSIX process groups
// are unavailable; the default cmd.Cancel (os.Process.Kill) is used instead.
func setupProcessCleanup(cmd *exec.Cmd) {
	cmd.WaitDelay = 5 * time.Second
}
