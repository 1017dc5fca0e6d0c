//go:build !windows

package codex

import "syscall"

// newSysProcAttr creates a new session for the child process, detaching it
// from the controlling terminal.
func newSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
