// Package npipe provides a named, rendezvous-capable byte channel usable
// across unrelated processes.
//
// The name is one opaque string whose syntax belongs to the backing
// transport: a filesystem path on the Unix domain socket backend, a
// `\\.\pipe\NAME` string on the Windows named-pipe backend. The package
// does not translate between the two.
//
// A server binds a Listener with Listen and accepts any number of
// connections sequentially; a client obtains its connection with Dial.
// Connections are duplex byte streams with the same end-of-stream contract
// as package pipe: a read returns 0, nil once the peer has closed.
// Connections and their listener have independent lifetimes: closing the
// listener never disturbs connections already accepted.
//
// On the Unix backend a name persists in the filesystem after an unclean
// shutdown and makes the next Listen fail with ErrNameConflict; callers
// re-creating a listener should Unlink the name first. On the Windows
// backend the namespace entry dies with its handles and Unlink is a no-op.
package npipe

import (
	"io"
	"sync/atomic"

	"github.com/nixpare/sysport/oserr"
)

type listenerImpl interface {
	accept() (io.ReadWriteCloser, error)
	close() error
}

// Listener is a named rendezvous point accepting inbound connections.
type Listener struct {
	name   string
	impl   listenerImpl
	closed atomic.Bool
}

// Conn is one live duplex byte stream, produced by Accept or Dial.
type Conn struct {
	rw     io.ReadWriteCloser
	closed atomic.Bool
}

// Listen binds a listener under name. A stale or still-active entry under
// the same name fails with ErrNameConflict.
func Listen(name string) (*Listener, error) {
	impl, err := listen(name)
	if err != nil {
		return nil, err
	}
	return &Listener{name: name, impl: impl}, nil
}

// Accept blocks for the next inbound connection. It may be called
// repeatedly; each call yields an independent connection.
func (l *Listener) Accept() (*Conn, error) {
	if l.closed.Load() {
		return nil, oserr.New(oserr.Closed, "npipe.accept", nil)
	}
	rw, err := l.impl.accept()
	if err != nil {
		if l.closed.Load() {
			return nil, oserr.New(oserr.Closed, "npipe.accept", err)
		}
		return nil, oserr.New(oserr.IO, "npipe.accept", err)
	}
	return &Conn{rw: rw}, nil
}

// Name returns the string the listener was bound under.
func (l *Listener) Name() string { return l.name }

// Close stops accepting new connections. Accepted connections live on.
// On the Unix backend the name stays in the filesystem until Unlink, and an
// Accept blocked at the time of Close unblocks immediately; the Windows
// backend lets a blocked Accept return only on the next client connection,
// which then observes the closed state.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return oserr.New(oserr.Closed, "npipe.close", nil)
	}
	return l.impl.close()
}

// Dial connects to the listener bound under name.
func Dial(name string) (*Conn, error) {
	rw, err := dial(name)
	if err != nil {
		return nil, err
	}
	return &Conn{rw: rw}, nil
}

// Unlink removes name from the backing namespace. Required before
// re-listening on a name left behind by an unclean shutdown; removing a
// name that is not there is reported, not hidden.
func Unlink(name string) error {
	return unlink(name)
}

// Read fills p from the stream. Partial reads are normal; once the peer
// has closed, Read returns 0, nil on this and every later call.
func (c *Conn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, oserr.New(oserr.Closed, "npipe.read", nil)
	}
	n, err := c.rw.Read(p)
	if err == io.EOF {
		// bytes delivered together with end-of-stream still count;
		// the next call reports the bare 0
		return n, nil
	}
	if err != nil {
		return n, oserr.New(oserr.IO, "npipe.read", err)
	}
	return n, nil
}

// Write sends p. Partial writes are legal; WriteAll loops to completion.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, oserr.New(oserr.Closed, "npipe.write", nil)
	}
	n, err := c.rw.Write(p)
	if err != nil {
		return n, oserr.New(oserr.IO, "npipe.write", err)
	}
	return n, nil
}

// WriteAll loops until every byte of p has been written or an error occurs.
func (c *Conn) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := c.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Close releases this connection only. A second Close fails with ErrClosed.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return oserr.New(oserr.Closed, "npipe.close", nil)
	}
	return c.rw.Close()
}
