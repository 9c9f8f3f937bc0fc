package process

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procFreeConsole              = kernel32.NewProc("FreeConsole")
	procAttachConsole            = kernel32.NewProc("AttachConsole")
	procSetConsoleCtrlHandler    = kernel32.NewProc("SetConsoleCtrlHandler")
	procGenerateConsoleCtrlEvent = kernel32.NewProc("GenerateConsoleCtrlEvent")
)

// sendConsoleCtrlC delivers CTRL_C_EVENT to the console owned by pid.
//
// Console control events can only be generated for the console the caller
// is attached to, so the sequence is: detach from our console, attach to
// the child's, mute our own handler so we do not interrupt ourselves, then
// generate the event. The caller's original console is gone afterwards;
// children are spawned with their own console precisely so this process
// never needs to reclaim one it shares with them.
func sendConsoleCtrlC(pid int) error {
	if err := freeConsole(); err != nil {
		return err
	}
	if err := attachConsole(pid); err != nil {
		return err
	}
	if err := setConsoleCtrlHandler(true); err != nil {
		return err
	}

	r, _, err := procGenerateConsoleCtrlEvent.Call(windows.CTRL_C_EVENT, 0)
	if r == 0 {
		return fmt.Errorf("GenerateConsoleCtrlEvent: %w", err)
	}
	return nil
}

func freeConsole() error {
	r, _, err := procFreeConsole.Call()
	if r == 0 {
		return fmt.Errorf("FreeConsole: %w", err)
	}
	return nil
}

func attachConsole(pid int) error {
	r, _, err := procAttachConsole.Call(uintptr(uint32(pid)))
	if r == 0 {
		return fmt.Errorf("AttachConsole(%d): %w", pid, err)
	}
	return nil
}

// setConsoleCtrlHandler(true) makes this process ignore Ctrl+C events;
// false restores default handling.
func setConsoleCtrlHandler(ignore bool) error {
	var a uintptr
	if ignore {
		a = 1
	}
	r, _, err := procSetConsoleCtrlHandler.Call(0, a)
	if r == 0 {
		return fmt.Errorf("SetConsoleCtrlHandler: %w", err)
	}
	return nil
}
