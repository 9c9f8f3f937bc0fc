// Package pipe provides an anonymous unidirectional byte channel between
// related processes.
//
// Create returns the two ends of a native pipe. Closing the write end is
// the designated end-of-stream signal: once the writer is closed and the
// buffered bytes are drained, every Read on the read end returns n == 0
// with a nil error. There is no sentinel byte.
//
// Each end must be closed exactly once by its owner; a second Close fails
// with oserr.ErrClosed instead of touching the descriptor again.
package pipe

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/nixpare/sysport/oserr"
)

// ReadEnd is the receiving half of a pipe.
type ReadEnd struct {
	f      *os.File
	closed atomic.Bool
}

// WriteEnd is the sending half of a pipe.
type WriteEnd struct {
	f      *os.File
	closed atomic.Bool
}

// Create builds a connected pipe pair. The read end sees, in order, every
// byte written to the write end.
func Create() (*ReadEnd, *WriteEnd, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, oserr.New(oserr.IO, "pipe.create", err)
	}
	return &ReadEnd{f: r}, &WriteEnd{f: w}, nil
}

// Read fills p with available bytes and returns how many were read.
// Partial reads are normal. After the peer closes its write end Read
// returns 0, nil on this and every subsequent call.
func (r *ReadEnd) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, oserr.New(oserr.Closed, "pipe.read", nil)
	}
	n, err := r.f.Read(p)
	if err == io.EOF {
		// bytes delivered together with end-of-stream still count;
		// the next call reports the bare 0
		return n, nil
	}
	if err != nil {
		return n, oserr.New(oserr.IO, "pipe.read", err)
	}
	return n, nil
}

// Write sends p and returns how many bytes were accepted. Partial writes
// are legal: callers that need the full buffer delivered should use
// WriteAll or loop themselves.
func (w *WriteEnd) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, oserr.New(oserr.Closed, "pipe.write", nil)
	}
	n, err := w.f.Write(p)
	if err != nil {
		return n, oserr.New(oserr.IO, "pipe.write", err)
	}
	return n, nil
}

// WriteAll loops until every byte of p has been written or an error occurs.
func (w *WriteEnd) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Close releases the read end. A second Close fails with ErrClosed.
func (r *ReadEnd) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return oserr.New(oserr.Closed, "pipe.close", nil)
	}
	return r.f.Close()
}

// Close releases the write end, signalling end-of-stream to the reader.
// A second Close fails with ErrClosed.
func (w *WriteEnd) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return oserr.New(oserr.Closed, "pipe.close", nil)
	}
	return w.f.Close()
}

// File exposes the underlying descriptor so the end can be bound to a
// child's standard stream. The end keeps ownership; nil after Close.
func (r *ReadEnd) File() *os.File {
	if r.closed.Load() {
		return nil
	}
	return r.f
}

// File exposes the underlying descriptor so the end can be bound to a
// child's standard stream. The end keeps ownership; nil after Close.
func (w *WriteEnd) File() *os.File {
	if w.closed.Load() {
		return nil
	}
	return w.f
}
