//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// newCommand builds the platform command skeleton. On Unix the path is
// executed directly, no shell and no PATH lookup: the caller names the
// executable and argv reaches execve untouched.
func newCommand(path string, argv []string) *exec.Cmd {
	return &exec.Cmd{Path: path, Args: argv}
}

func kill(p *os.Process) error {
	return p.Kill()
}

func interrupt(p *os.Process) error {
	return p.Signal(os.Interrupt)
}

// decodeStatus turns the reaped process state into the portable encoding:
// -signal for abnormal termination, the plain code otherwise.
func decodeStatus(pid int, cmd *exec.Cmd, waitErr error) ExitStatus {
	st := ExitStatus{PID: pid, Code: -1}

	ps := cmd.ProcessState
	if ps == nil {
		return st
	}

	if sys, ok := ps.Sys().(syscall.WaitStatus); ok {
		ws := unix.WaitStatus(sys)
		if ws.Signaled() {
			st.Code = -int(ws.Signal())
			st.Signaled = true
			return st
		}
		if ws.Exited() {
			st.Code = ws.ExitStatus()
			return st
		}
	}

	st.Code = ps.ExitCode()
	return st
}
