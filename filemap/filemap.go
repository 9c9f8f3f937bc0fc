// Package filemap maps a file region into memory so unrelated processes
// can share bytes through the filesystem without read/write round trips.
//
// A Mapping is a live view: writes through Bytes become visible to other
// mappers of the same file, Flush forces them to the backing file, Close
// releases the view exactly once. The caller owns the *os.File and may
// close it right after Map; the view stays valid.
package filemap

import (
	"os"
	"sync/atomic"

	"github.com/nixpare/sysport/oserr"
)

type mapImpl interface {
	bytes() []byte
	flush() error
	close() error
}

// Mapping is one mapped view of a file.
type Mapping struct {
	impl   mapImpl
	closed atomic.Bool
}

// Map maps the first length bytes of f. A writable mapping of a file
// shorter than length grows the file first; a read-only one fails instead
// of faulting later on the missing tail.
func Map(f *os.File, length int, writable bool) (*Mapping, error) {
	if f == nil || length <= 0 {
		return nil, oserr.Errorf(oserr.InvalidArgument, "filemap.map",
			"a file and a positive length are required")
	}

	info, err := f.Stat()
	if err != nil {
		return nil, oserr.New(oserr.IO, "filemap.map", err)
	}
	if info.Size() < int64(length) {
		if !writable {
			return nil, oserr.Errorf(oserr.InvalidArgument, "filemap.map",
				"file is %d bytes, mapping wants %d", info.Size(), length)
		}
		if err := f.Truncate(int64(length)); err != nil {
			return nil, oserr.New(oserr.IO, "filemap.map", err)
		}
	}

	impl, err := mapFile(f, length, writable)
	if err != nil {
		return nil, oserr.New(oserr.IO, "filemap.map", err)
	}
	return &Mapping{impl: impl}, nil
}

// Bytes returns the mapped view. It aliases the file contents directly
// and must not be used after Close; nil once closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.impl.bytes()
}

// Flush forces modified pages of the view to the backing file.
func (m *Mapping) Flush() error {
	if m.closed.Load() {
		return oserr.New(oserr.Closed, "filemap.flush", nil)
	}
	if err := m.impl.flush(); err != nil {
		return oserr.New(oserr.IO, "filemap.flush", err)
	}
	return nil
}

// Close releases the view. A second Close fails with ErrClosed.
func (m *Mapping) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return oserr.New(oserr.Closed, "filemap.close", nil)
	}
	return m.impl.close()
}
