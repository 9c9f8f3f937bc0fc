package process

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// killExitCode is the exit code forced by Kill, mirroring the -9 a SIGKILL
// victim reports on the Unix backend. It keeps a killed child out of the
// normal [0,255] code range.
const killExitCode = 0xFFFFFFF7 // int32(-9)

// ntStatusSeverityError marks NTSTATUS codes the kernel assigns to faulted
// processes (access violation, illegal instruction, ...).
const ntStatusSeverityError = 0xC0000000

// newCommand builds the platform command skeleton. The child gets its own
// hidden console so console control events generated for it do not reach
// the parent.
//
// The command line handed to CreateProcess is argv joined with single
// spaces and nothing else: no quoting, no escaping. Each program parses
// its own command line, so the join must stay deterministic instead of
// going through the runtime's per-argument quote-escaping.
func newCommand(path string, argv []string) *exec.Cmd {
	return &exec.Cmd{
		Path: path,
		Args: argv,
		SysProcAttr: &syscall.SysProcAttr{
			CreationFlags: windows.CREATE_NEW_CONSOLE,
			HideWindow:    true,
			CmdLine:       strings.Join(argv, " "),
		},
	}
}

// kill terminates the child with killExitCode instead of the runtime's
// default code 1, which a child could also exit with normally.
func kill(p *os.Process) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(p.Pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	return windows.TerminateProcess(h, killExitCode)
}

// interrupt simulates Ctrl+C for the child by temporarily attaching to its
// console and generating a control event there, shielding this process
// from the event it generates.
func interrupt(p *os.Process) error {
	return sendConsoleCtrlC(p.Pid)
}

func decodeStatus(pid int, cmd *exec.Cmd, waitErr error) ExitStatus {
	st := ExitStatus{PID: pid, Code: -1}

	ps := cmd.ProcessState
	if ps == nil {
		return st
	}

	sys, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		st.Code = ps.ExitCode()
		return st
	}

	code := sys.ExitCode
	if code == killExitCode || code&ntStatusSeverityError == ntStatusSeverityError {
		st.Code = int(int32(code))
		st.Signaled = true
		return st
	}

	st.Code = int(code)
	return st
}
