//go:build !windows

package agent

import (
	"os/exec"
	"syscall"
	"time"
)

// setupProcessCleanup configures cmd to kill the entire process group on
// context cancellation, preventing orphaned child processes from holding the
// output pipes and blocking Run past the deadline. Backends that already
// detach into a new session keep their SysProcAttr; everyone else gets a
// dedicated process group.
func setupProcessCleanup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
	cmd.WaitDelay = 5 * time.Second
}
