//go:build !windows

package filemap

import (
	"os"

	"golang.org/x/sys/unix"
)

type unixMapping struct {
	b []byte
}

func mapFile(f *os.File, length int, writable bool) (mapImpl, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	b, err := unix.Mmap(int(f.Fd()), 0, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &unixMapping{b: b}, nil
}

func (m *unixMapping) bytes() []byte { return m.b }

func (m *unixMapping) flush() error {
	return unix.Msync(m.b, unix.MS_SYNC)
}

func (m *unixMapping) close() error {
	return unix.Munmap(m.b)
}
