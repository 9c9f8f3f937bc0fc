package sig

import (
	"sync"

	"golang.org/x/sys/windows"
)

// Exception codes delivered to the vectored handler.
const (
	excAccessViolation    = 0xC0000005 // EXCEPTION_ACCESS_VIOLATION
	excIllegalInstruction = 0xC000001D // EXCEPTION_ILLEGAL_INSTRUCTION
	excStackOverflow      = 0xC00000FD // EXCEPTION_STACK_OVERFLOW
	excFltDivideByZero    = 0xC000008E // EXCEPTION_FLT_DIVIDE_BY_ZERO
	excIntDivideByZero    = 0xC0000094 // EXCEPTION_INT_DIVIDE_BY_ZERO

	exceptionContinueSearch = 0
)

var (
	kernel32                           = windows.NewLazySystemDLL("kernel32.dll")
	procAddVectoredExceptionHandler    = kernel32.NewProc("AddVectoredExceptionHandler")
	procRemoveVectoredExceptionHandler = kernel32.NewProc("RemoveVectoredExceptionHandler")
)

type exceptionRecord struct {
	Code             uint32
	Flags            uint32
	Record           uintptr
	Address          uintptr
	NumberParameters uint32
	Information      [15]uintptr
}

type exceptionPointers struct {
	Record  *exceptionRecord
	Context uintptr
}

// kindSupported: the vectored-handler backend can observe every kind,
// including stack overflow (the kernel dispatches the handler on what
// remains of the guard region).
func kindSupported(k Kind) bool {
	return true
}

// osDelivery installs one process-wide vectored exception handler and
// routes faults through the registry. The handler always returns
// EXCEPTION_CONTINUE_SEARCH: after the one delivery the native search
// continues and terminates the process, matching the unhandled-filter
// model of the native API.
type osDelivery struct {
	mu     sync.Mutex
	cookie uintptr
}

func (d *osDelivery) arm(r *Registry, kinds []Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cookie != 0 {
		return nil
	}

	cb := windows.NewCallback(func(info *exceptionPointers) uintptr {
		rec := info.Record
		ev := Event{Kind: exceptionKind(rec.Code), Flags: rec.Code}
		if rec.Code == excAccessViolation && rec.NumberParameters >= 2 {
			// Information[0]: 0 read / 1 write / 8 DEP
			ev.Flags = uint32(rec.Information[0])
			ev.Addr = rec.Information[1]
		}
		if ev.Kind != 0 {
			r.deliver(ev)
		}
		return exceptionContinueSearch
	})

	cookie, _, err := procAddVectoredExceptionHandler.Call(1, cb)
	if cookie == 0 {
		return err
	}
	d.cookie = cookie
	return nil
}

func (d *osDelivery) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cookie != 0 {
		procRemoveVectoredExceptionHandler.Call(d.cookie)
		d.cookie = 0
	}
}

func exceptionKind(code uint32) Kind {
	switch code {
	case excAccessViolation:
		return AccessViolation
	case excIllegalInstruction:
		return IllegalInstruction
	case excStackOverflow:
		return StackOverflow
	case excFltDivideByZero, excIntDivideByZero:
		return Arithmetic
	}
	return 0
}
