// Package sig delivers asynchronous fault and console-interrupt
// notifications to a registered callback.
//
// Subscriptions live in an explicit Registry instead of process globals:
// construct one during program initialization, hold it for the process
// lifetime, and re-subscribe at will - a new subscription atomically
// replaces the previous one and hands it back, so tests can install and
// uninstall handlers without leaking state into each other.
//
// Fault delivery is one-shot: once a fault kind has fired, it is disarmed
// and a second occurrence of the same kind is not caught unless the
// callback (or anyone else) re-subscribes. This mirrors the native models
// (SA_RESETHAND, unhandled-exception-filter removal) and is deliberately
// not "fixed" into auto-rearming.
//
// Fault callbacks run on the faulting goroutine inside the fault context:
// they must not assume program state is recoverable, must not take locks
// shared with normal code, and should limit themselves to recording the
// Event. Concurrent faults on different goroutines invoke the callback
// concurrently; the registry serializes only its subscription state.
package sig

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/nixpare/sysport/oserr"
)

// Kind identifies one class of hardware/runtime fault.
type Kind int

const (
	// AccessViolation: a read or write to a virtual address the thread
	// may not touch.
	AccessViolation Kind = iota + 1

	// IllegalInstruction: the thread executed an invalid opcode.
	IllegalInstruction

	// StackOverflow: the thread exhausted its stack. Delivery requires a
	// pre-reserved alternate stack; backends that cannot provide one
	// reject the subscription with ErrUnsupported.
	StackOverflow

	// Arithmetic: divide by zero or an equivalent arithmetic fault.
	Arithmetic
)

func (k Kind) String() string {
	switch k {
	case AccessViolation:
		return "access-violation"
	case IllegalInstruction:
		return "illegal-instruction"
	case StackOverflow:
		return "stack-overflow"
	case Arithmetic:
		return "arithmetic"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event describes one delivered fault. It is constructed immediately
// before the callback runs and not retained afterwards.
type Event struct {
	Kind  Kind
	Addr  uintptr // faulting address for AccessViolation, else 0
	Flags uint32  // platform-specific code (si_code, signal number, NTSTATUS info)
}

func (e Event) String() string {
	return fmt.Sprintf("%s addr=0x%x flags=0x%x", e.Kind, e.Addr, e.Flags)
}

// Handler is the restricted fault callback: it receives only the Event and
// must not allocate, lock, or call back into ordinary program logic.
type Handler func(Event)

// Registry holds the process's fault and interrupt subscriptions.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.Mutex
	handler Handler
	armed   map[Kind]bool

	os   osDelivery
	intr interruptDelivery
}

// NewRegistry builds an empty registry. A program normally holds exactly
// one for its lifetime.
func NewRegistry() *Registry {
	return &Registry{armed: make(map[Kind]bool)}
}

// Subscribe installs h as the single fault callback for the given kinds,
// arming (or re-arming) each of them, and returns the previously installed
// callback. Subscribing nil uninstalls. ErrUnsupported is returned, with
// no state change, when any requested kind cannot be delivered by this
// backend.
func (r *Registry) Subscribe(h Handler, kinds ...Kind) (Handler, error) {
	for _, k := range kinds {
		if !kindSupported(k) {
			return nil, oserr.Errorf(oserr.Unsupported, "sig.subscribe",
				"%s cannot be delivered on this runtime", k)
		}
	}

	r.mu.Lock()
	prev := r.handler
	r.handler = h
	if h == nil {
		r.armed = make(map[Kind]bool)
		r.mu.Unlock()
		return prev, nil
	}
	for _, k := range kinds {
		r.armed[k] = true
	}
	r.mu.Unlock()

	if err := r.os.arm(r, kinds); err != nil {
		return prev, err
	}
	return prev, nil
}

// deliver runs the callback for ev if its kind is armed, disarming the
// kind first so a callback that wants another shot can re-subscribe.
// Reports whether a callback consumed the event.
func (r *Registry) deliver(ev Event) bool {
	r.mu.Lock()
	h := r.handler
	if h == nil || !r.armed[ev.Kind] {
		r.mu.Unlock()
		return false
	}
	delete(r.armed, ev.Kind) // one-shot
	r.mu.Unlock()

	h(ev)
	return true
}

// Trap runs fn on the calling goroutine, converting a synchronous fault
// inside it into one delivery to the subscribed callback. It returns nil
// when fn completes, a *TrappedFault carrying the Event when a subscribed
// fault was delivered. Panics that are not faults, and faults whose kind
// is not armed, propagate unchanged.
func (r *Registry) Trap(fn func()) (err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		ev, ok := classifyPanic(p)
		if !ok || !r.deliver(ev) {
			panic(p)
		}
		err = &TrappedFault{Event: ev, msg: fmt.Sprint(p)}
	}()

	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)

	fn()
	return nil
}

// SubscribeInterrupt installs cb as the console-interrupt (Ctrl+C)
// callback and returns the previous one. The callback runs concurrently
// with every other goroutine; the only safe way for it to communicate is
// through atomic flags or lock-protected state it exclusively documents.
// Subscribing nil uninstalls.
func (r *Registry) SubscribeInterrupt(cb func()) func() {
	return r.intr.subscribe(cb)
}

// Close detaches the registry from OS delivery and drops all
// subscriptions. It is idempotent, and the registry stays usable: a later
// Subscribe or SubscribeInterrupt re-attaches delivery.
func (r *Registry) Close() {
	r.os.stop()
	r.intr.stop()
	r.mu.Lock()
	r.handler = nil
	r.armed = make(map[Kind]bool)
	r.mu.Unlock()
}

// TrappedFault is the error Trap returns for a delivered fault.
type TrappedFault struct {
	Event Event
	msg   string
}

func (f *TrappedFault) Error() string {
	return fmt.Sprintf("trapped fault: %s: %s", f.Event, f.msg)
}

// classifyPanic maps a recovered panic value onto a fault Event. Only
// runtime faults qualify; ordinary panics report ok == false.
func classifyPanic(p any) (Event, bool) {
	re, ok := p.(runtime.Error)
	if !ok {
		return Event{}, false
	}

	// A memory fault caught under SetPanicOnFault carries the faulting
	// address on the panic value itself (see runtime/debug.SetPanicOnFault).
	if a, ok := p.(interface{ Addr() uintptr }); ok {
		return Event{Kind: AccessViolation, Addr: a.Addr()}, true
	}

	msg := re.Error()
	switch {
	case strings.Contains(msg, "nil pointer dereference"):
		return Event{Kind: AccessViolation}, true

	case strings.Contains(msg, "divide by zero"),
		strings.Contains(msg, "SIGFPE"):
		return Event{Kind: Arithmetic, Flags: hexFlag(msg)}, true

	case strings.Contains(msg, "SIGSEGV"), strings.Contains(msg, "SIGBUS"):
		return Event{Kind: AccessViolation, Addr: hexField(msg, "addr="), Flags: hexFlag(msg)}, true

	case strings.Contains(msg, "SIGILL"):
		return Event{Kind: IllegalInstruction, Addr: hexField(msg, "addr="), Flags: hexFlag(msg)}, true
	}
	return Event{}, false
}

// hexField extracts the 0x-prefixed value following key in a runtime
// error message, 0 when absent.
func hexField(msg, key string) uintptr {
	i := strings.Index(msg, key)
	if i < 0 {
		return 0
	}
	s := msg[i+len(key):]
	if len(s) < 2 || s[0] != '0' || s[1] != 'x' {
		return 0
	}
	s = s[2:]
	end := 0
	for end < len(s) && isHexDigit(s[end]) {
		end++
	}
	v, err := strconv.ParseUint(s[:end], 16, 64)
	if err != nil {
		return 0
	}
	return uintptr(v)
}

func hexFlag(msg string) uint32 {
	return uint32(hexField(msg, "code="))
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
