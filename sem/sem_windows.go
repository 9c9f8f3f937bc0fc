package sem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/nixpare/sysport/oserr"
)

// x/sys/windows carries no semaphore wrappers; reach kernel32 directly.
var (
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procCreateSemaphoreW = kernel32.NewProc("CreateSemaphoreW")
	procOpenSemaphoreW   = kernel32.NewProc("OpenSemaphoreW")
	procReleaseSemaphore = kernel32.NewProc("ReleaseSemaphore")
)

const (
	semaphoreAllAccess = 0x1F0003
	maxCount           = 0x7FFFFFFF
)

type winSem struct {
	h windows.Handle
}

func open(name string, createIfAbsent bool, initial uint) (semImpl, error) {
	if name == "" || len(name) >= windows.MAX_PATH {
		return nil, oserr.Errorf(oserr.InvalidArgument, "sem.open",
			"semaphore name length must be in [1,%d): %q", windows.MAX_PATH, name)
	}
	if initial > maxCount {
		return nil, oserr.Errorf(oserr.InvalidArgument, "sem.open",
			"initial value %d overflows the counter", initial)
	}
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, oserr.New(oserr.InvalidArgument, "sem.open", err)
	}

	var h uintptr
	if createIfAbsent {
		// open-or-create in one call; an existing semaphore keeps its
		// counter and initial is ignored, per the kernel contract
		h, _, err = procCreateSemaphoreW.Call(0,
			uintptr(initial), maxCount,
			uintptr(unsafe.Pointer(name16)))
	} else {
		h, _, err = procOpenSemaphoreW.Call(semaphoreAllAccess, 0,
			uintptr(unsafe.Pointer(name16)))
	}
	if h == 0 {
		return nil, oserr.New(oserr.IO, "sem.open", err)
	}

	return &winSem{h: windows.Handle(h)}, nil
}

func (s *winSem) wait() error {
	ev, err := windows.WaitForSingleObject(s.h, windows.INFINITE)
	if ev != windows.WAIT_OBJECT_0 {
		return fmt.Errorf("WaitForSingleObject: event 0x%x: %w", ev, err)
	}
	return nil
}

func (s *winSem) post() error {
	r, _, err := procReleaseSemaphore.Call(uintptr(s.h), 1, 0)
	if r == 0 {
		return fmt.Errorf("ReleaseSemaphore: %w", err)
	}
	return nil
}

func (s *winSem) close() error {
	return windows.CloseHandle(s.h)
}

// unlink is a no-op: Windows semaphores are reference counted by the
// kernel and vanish with their last handle.
func unlink(name string) error {
	return nil
}
