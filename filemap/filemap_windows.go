package filemap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type winMapping struct {
	obj  windows.Handle // file-mapping object
	addr uintptr
	b    []byte
}

func mapFile(f *os.File, length int, writable bool) (mapImpl, error) {
	prot := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		prot = windows.PAGE_READWRITE
		access = windows.FILE_MAP_READ | windows.FILE_MAP_WRITE
	}

	sz := uint64(length)
	obj, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, prot,
		uint32(sz>>32), uint32(sz), nil)
	if err != nil {
		return nil, err
	}

	addr, err := windows.MapViewOfFile(obj, access, 0, 0, uintptr(length))
	if err != nil {
		windows.CloseHandle(obj)
		return nil, err
	}

	return &winMapping{
		obj:  obj,
		addr: addr,
		b:    unsafe.Slice((*byte)(unsafe.Pointer(addr)), length),
	}, nil
}

func (m *winMapping) bytes() []byte { return m.b }

func (m *winMapping) flush() error {
	return windows.FlushViewOfFile(m.addr, 0)
}

func (m *winMapping) close() error {
	m.b = nil
	if err := windows.UnmapViewOfFile(m.addr); err != nil {
		windows.CloseHandle(m.obj)
		return err
	}
	return windows.CloseHandle(m.obj)
}
