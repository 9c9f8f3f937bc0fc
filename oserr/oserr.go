// Package oserr defines the error surface shared by every sysport package.
//
// Each failing operation returns an *Error carrying the failure Kind, the
// name of the operation that produced it and the underlying platform error
// (errno on Unix, the GetLastError value surfaced by the runtime on
// Windows). The platform error is preserved by wrapping, never re-encoded,
// so errors.Is still matches syscall sentinels like unix.ENOENT.
package oserr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently from the platform error code
// domain that produced it.
type Kind int

const (
	// Spawn reports that a child process could not be created: executable
	// not found, not executable, or refused by the OS.
	Spawn Kind = iota + 1

	// TimedOut reports that a no-hang or deadline wait found the process
	// still running. It is an expected outcome, not an exceptional one.
	TimedOut

	// IO reports a read/write/accept/connect failure on a channel.
	IO

	// NameConflict reports a stale or colliding entry under the requested
	// name in the backing namespace.
	NameConflict

	// InvalidArgument reports a malformed or over-long name or path.
	InvalidArgument

	// Unsupported reports that the requested capability cannot be provided
	// by this platform or runtime.
	Unsupported

	// Closed reports use of a handle that was already consumed or closed.
	Closed
)

// Sentinels for errors.Is matching. An *Error with kind K matches the
// sentinel of the same kind.
var (
	ErrSpawn           = errors.New("process creation failed")
	ErrTimedOut        = errors.New("timed out")
	ErrIO              = errors.New("i/o failure")
	ErrNameConflict    = errors.New("name already in use")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnsupported     = errors.New("unsupported on this platform")
	ErrClosed          = errors.New("handle already closed")
)

func (k Kind) sentinel() error {
	switch k {
	case Spawn:
		return ErrSpawn
	case TimedOut:
		return ErrTimedOut
	case IO:
		return ErrIO
	case NameConflict:
		return ErrNameConflict
	case InvalidArgument:
		return ErrInvalidArgument
	case Unsupported:
		return ErrUnsupported
	case Closed:
		return ErrClosed
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the concrete error type returned by sysport operations.
type Error struct {
	Kind Kind   // failure class
	Op   string // operation that failed, e.g. "process.spawn"
	Err  error  // underlying platform error, may be nil
}

// New builds an *Error. err may be nil when the failure has no underlying
// platform error (e.g. a no-hang wait that found the child running).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose underlying error is formatted from args.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match an *Error against its kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf walks an error chain and returns the Kind of the outermost *Error
// found, or 0 when the chain contains none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
