package npipe

import (
	"io"
	"sync"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/nixpare/sysport/oserr"
)

// Not all pipe error codes made it into x/sys/windows; keep the ones the
// backend relies on local.
const (
	errorPipeConnected syscall.Errno = 535 // ERROR_PIPE_CONNECTED
	errorBrokenPipe    syscall.Errno = 109 // ERROR_BROKEN_PIPE
)

const pipeBufferSize = 4096

// winListener accepts connections by creating one pipe instance per
// Accept: the Windows model has no separate listening object, the instance
// itself is the rendezvous.
//
// Closing the listener does not cancel a ConnectNamedPipe already blocked
// inside Accept; that call returns with its instance when the next client
// connects (or errors) and only then observes the closed state. The Unix
// backend's close unblocks a pending Accept immediately.
type winListener struct {
	name16 *uint16

	mu     sync.Mutex
	closed bool
	next   windows.Handle // pre-created instance awaiting the next client
}

func listen(name string) (listenerImpl, error) {
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, oserr.New(oserr.InvalidArgument, "npipe.listen", err)
	}

	// FILE_FLAG_FIRST_PIPE_INSTANCE turns a name collision into an
	// explicit creation failure instead of silently joining the pipe.
	h, err := windows.CreateNamedPipe(name16,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_FIRST_PIPE_INSTANCE,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES, pipeBufferSize, pipeBufferSize, 0, nil)
	if err != nil {
		if err == windows.ERROR_ACCESS_DENIED || err == windows.ERROR_ALREADY_EXISTS {
			return nil, oserr.New(oserr.NameConflict, "npipe.listen", err)
		}
		return nil, oserr.New(oserr.IO, "npipe.listen", err)
	}

	return &winListener{name16: name16, next: h}, nil
}

func (l *winListener) accept() (io.ReadWriteCloser, error) {
	l.mu.Lock()
	h := l.next
	l.next = windows.InvalidHandle
	l.mu.Unlock()

	if h == windows.InvalidHandle {
		return nil, windows.ERROR_INVALID_HANDLE
	}

	err := windows.ConnectNamedPipe(h, nil)
	if err != nil && err != errorPipeConnected {
		windows.CloseHandle(h)
		return nil, err
	}

	// replace the consumed instance so the listener stays acceptable
	next, err := windows.CreateNamedPipe(l.name16,
		windows.PIPE_ACCESS_DUPLEX,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES, pipeBufferSize, pipeBufferSize, 0, nil)
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}

	l.mu.Lock()
	if l.closed {
		// the listener was closed while this accept was in flight; do
		// not park an instance nothing will ever drain
		l.mu.Unlock()
		windows.CloseHandle(next)
	} else {
		l.next = next
		l.mu.Unlock()
	}

	return &pipeHandle{h: h, server: true}, nil
}

func (l *winListener) close() error {
	l.mu.Lock()
	l.closed = true
	h := l.next
	l.next = windows.InvalidHandle
	l.mu.Unlock()

	if h == windows.InvalidHandle {
		return nil
	}
	return windows.CloseHandle(h)
}

func dial(name string) (io.ReadWriteCloser, error) {
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, oserr.New(oserr.InvalidArgument, "npipe.dial", err)
	}

	h, err := windows.CreateFile(name16,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil, oserr.New(oserr.IO, "npipe.dial", err)
	}
	return &pipeHandle{h: h}, nil
}

// unlink is a no-op: the pipe namespace entry dies with its last handle.
func unlink(name string) error {
	return nil
}

// pipeHandle adapts a raw pipe handle to the io contract the portable Conn
// wraps: a broken pipe on read is end-of-stream, not an error.
type pipeHandle struct {
	h      windows.Handle
	server bool
}

func (p *pipeHandle) Read(b []byte) (int, error) {
	var done uint32
	err := windows.ReadFile(p.h, b, &done, nil)
	if err == errorBrokenPipe {
		return 0, io.EOF
	}
	if err != nil {
		return int(done), err
	}
	return int(done), nil
}

func (p *pipeHandle) Write(b []byte) (int, error) {
	var done uint32
	if err := windows.WriteFile(p.h, b, &done, nil); err != nil {
		return int(done), err
	}
	return int(done), nil
}

func (p *pipeHandle) Close() error {
	if p.server {
		// flush the client's view before tearing the instance down
		windows.FlushFileBuffers(p.h)
		windows.DisconnectNamedPipe(p.h)
	}
	return windows.CloseHandle(p.h)
}
