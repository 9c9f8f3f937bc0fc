//go:build !windows

package npipe

import (
	"errors"
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nixpare/sysport/oserr"
)

// sunPathMax bounds a socket name like sockaddr_un.sun_path does,
// including the trailing NUL.
const sunPathMax = 108

type unixListener struct {
	l *net.UnixListener
}

func listen(name string) (listenerImpl, error) {
	if name == "" || len(name)+1 > sunPathMax {
		return nil, oserr.Errorf(oserr.InvalidArgument, "npipe.listen",
			"socket name length must be in [1,%d): %q", sunPathMax-1, name)
	}

	addr := &net.UnixAddr{Name: name, Net: "unix"}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		if errors.Is(err, unix.EADDRINUSE) {
			return nil, oserr.New(oserr.NameConflict, "npipe.listen", err)
		}
		return nil, oserr.New(oserr.IO, "npipe.listen", err)
	}

	// the name outlives the listener; removal is Unlink's job
	l.SetUnlinkOnClose(false)

	return &unixListener{l: l}, nil
}

func (u *unixListener) accept() (io.ReadWriteCloser, error) {
	return u.l.AcceptUnix()
}

func (u *unixListener) close() error {
	return u.l.Close()
}

func dial(name string) (io.ReadWriteCloser, error) {
	c, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: name, Net: "unix"})
	if err != nil {
		return nil, oserr.New(oserr.IO, "npipe.dial", err)
	}
	return c, nil
}

func unlink(name string) error {
	if err := os.Remove(name); err != nil {
		return oserr.New(oserr.IO, "npipe.unlink", err)
	}
	return nil
}
