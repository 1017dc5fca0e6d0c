//go:build windows

package codex

import "syscall"

// newSysProcAttr is a no-op on Windows; there is no controlling terminal to
// detach from.
func newSysProcAttr() *syscall.SysProcAttr {
	return nil
}
