package exec

import "syscall"

// sysProcAttr puts the child in its own process group and asks the kernel to
// SIGTERM it if we die first.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
