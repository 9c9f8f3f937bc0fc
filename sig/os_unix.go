//go:build !windows

package sig

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// kindSupported: the Go runtime owns stack growth and the SIGSEGV it
// raises on exhaustion; there is no alternate stack to hand user code, so
// StackOverflow subscriptions are rejected rather than silently dead.
func kindSupported(k Kind) bool {
	return k != StackOverflow
}

// osDelivery dispatches asynchronously delivered fault signals (e.g.
// kill -SEGV from another process). Synchronous faults raised by the
// program itself surface as runtime panics and reach the registry through
// Trap instead.
type osDelivery struct {
	mu sync.Mutex
	ch chan os.Signal
}

func (d *osDelivery) arm(r *Registry, kinds []Kind) error {
	var sigs []os.Signal
	for _, k := range kinds {
		sigs = append(sigs, kindSignals(k)...)
	}
	if len(sigs) == 0 {
		return nil
	}

	d.mu.Lock()
	if d.ch == nil {
		d.ch = make(chan os.Signal, 10)
		go d.run(r, d.ch)
	}
	ch := d.ch
	d.mu.Unlock()

	signal.Notify(ch, sigs...)
	return nil
}

func (d *osDelivery) run(r *Registry, ch chan os.Signal) {
	for s := range ch {
		signo, ok := s.(unix.Signal)
		if !ok {
			continue
		}
		r.deliver(Event{Kind: signalKind(signo), Flags: uint32(signo)})
	}
}

func (d *osDelivery) stop() {
	d.mu.Lock()
	ch := d.ch
	d.ch = nil
	d.mu.Unlock()

	if ch != nil {
		signal.Stop(ch)
		close(ch)
	}
}

func kindSignals(k Kind) []os.Signal {
	switch k {
	case AccessViolation:
		return []os.Signal{unix.SIGSEGV, unix.SIGBUS}
	case IllegalInstruction:
		return []os.Signal{unix.SIGILL}
	case Arithmetic:
		return []os.Signal{unix.SIGFPE}
	}
	return nil
}

func signalKind(s unix.Signal) Kind {
	switch s {
	case unix.SIGSEGV, unix.SIGBUS:
		return AccessViolation
	case unix.SIGILL:
		return IllegalInstruction
	case unix.SIGFPE:
		return Arithmetic
	}
	return 0
}
