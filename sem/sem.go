// Package sem provides a named, cross-process counting semaphore.
//
// A semaphore is a kernel-persistent non-negative counter: Wait blocks
// until the counter is positive and atomically decrements it, Post
// atomically increments it, waking at most one waiter per unit. Ordering
// among multiple waiters is whatever the platform wait queue does; callers
// must not rely on fairness.
//
// Naming follows the POSIX convention of one opaque segment ("/name" or
// "name", no interior slashes). The name's lifetime is independent of any
// handle: Close releases one process's handle, Unlink removes the name
// system-wide. Unlinking never invalidates handles already open - the
// counter stays usable by its holders and disappears with the last
// reference, and a fresh create under the same name after full closure
// yields an independent counter.
//
// Backends: a 4-byte shared-memory counter with futex wait/wake on Linux,
// a named kernel semaphore object on Windows.
package sem

import (
	"sync/atomic"

	"github.com/nixpare/sysport/oserr"
)

type semImpl interface {
	wait() error
	post() error
	close() error
}

// Semaphore is one process's handle to a named counter.
type Semaphore struct {
	name   string
	impl   semImpl
	closed atomic.Bool
}

// Open opens the semaphore called name, creating it with the given initial
// counter when createIfAbsent is set and no such name exists. When the
// name already exists, initial is ignored: the live counter governs.
func Open(name string, createIfAbsent bool, initial uint) (*Semaphore, error) {
	impl, err := open(name, createIfAbsent, initial)
	if err != nil {
		return nil, err
	}
	return &Semaphore{name: name, impl: impl}, nil
}

// Wait blocks until the counter is positive, then decrements it.
func (s *Semaphore) Wait() error {
	if s.closed.Load() {
		return oserr.New(oserr.Closed, "sem.wait", nil)
	}
	if err := s.impl.wait(); err != nil {
		return oserr.New(oserr.IO, "sem.wait", err)
	}
	return nil
}

// Post increments the counter, releasing at most one waiter per unit.
func (s *Semaphore) Post() error {
	if s.closed.Load() {
		return oserr.New(oserr.Closed, "sem.post", nil)
	}
	if err := s.impl.post(); err != nil {
		return oserr.New(oserr.IO, "sem.post", err)
	}
	return nil
}

// Name returns the name the handle was opened under.
func (s *Semaphore) Name() string { return s.name }

// Close releases this process's handle. The named counter lives on for
// other holders. A second Close fails with ErrClosed.
func (s *Semaphore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return oserr.New(oserr.Closed, "sem.close", nil)
	}
	return s.impl.close()
}

// Unlink removes name from the system namespace. Handles already open keep
// working; the counter is reclaimed once the last one closes.
func Unlink(name string) error {
	return unlink(name)
}
