//go:build !linux

package exec

import "syscall"

// sysProcAttr puts the child in its own process group. Pdeathsig does not
// exist outside Linux.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}
