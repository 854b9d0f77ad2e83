//go:build !windows

package game

import "syscall"

// The game runs in its own process group so terminal signals sent to the
// migrator do not reach it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
