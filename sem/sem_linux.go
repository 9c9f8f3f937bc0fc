package sem

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nixpare/sysport/oserr"
)

// The counter lives in a 4-byte file under the shared-memory filesystem,
// like POSIX named semaphores do. The mapping keeps the counter alive for
// open handles even after the name is unlinked.
const (
	shmDir     = "/dev/shm"
	namePrefix = "sysport.sem."
	nameMax    = 255
)

// Futex operation codes. x/sys/unix exports the futex syscall number but
// not the op constants; these are the shared (cross-process) ops, without
// FUTEX_PRIVATE_FLAG.
const (
	futexWait = 0
	futexWake = 1
)

type futexSem struct {
	mem []byte
	ptr *uint32
}

// backingPath validates name and returns the counter file path. Names use
// the POSIX semaphore convention: one segment, optionally starting with
// '/', no interior slashes.
func backingPath(op, name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.ContainsRune(name, '/') {
		return "", oserr.Errorf(oserr.InvalidArgument, op,
			"semaphore name must be one non-empty path segment: %q", name)
	}
	file := namePrefix + name
	if len(file) > nameMax {
		return "", oserr.Errorf(oserr.InvalidArgument, op,
			"semaphore name longer than %d bytes", nameMax-len(namePrefix))
	}
	return filepath.Join(shmDir, file), nil
}

func open(name string, createIfAbsent bool, initial uint) (semImpl, error) {
	path, err := backingPath("sem.open", name)
	if err != nil {
		return nil, err
	}
	if initial > math.MaxUint32 {
		return nil, oserr.Errorf(oserr.InvalidArgument, "sem.open",
			"initial value %d overflows the counter", initial)
	}

	fd, err := openBacking(path, createIfAbsent, uint32(initial))
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, 0, 4, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, oserr.New(oserr.IO, "sem.open", err)
	}

	return &futexSem{
		mem: mem,
		ptr: (*uint32)(unsafe.Pointer(&mem[0])),
	}, nil
}

// openBacking opens or atomically creates the counter file. Creation
// initializes a private temporary file and links it into place, so no
// other opener can ever observe a counter that is not yet initialized.
func openBacking(path string, createIfAbsent bool, initial uint32) (int, error) {
	for {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err == nil {
			return fd, nil
		}
		if err != unix.ENOENT || !createIfAbsent {
			return -1, oserr.New(oserr.IO, "sem.open", err)
		}

		tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
		fd, err = unix.Open(tmp, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0666)
		if err != nil {
			return -1, oserr.New(oserr.IO, "sem.open", err)
		}

		init := make([]byte, 4)
		*(*uint32)(unsafe.Pointer(&init[0])) = initial
		if _, err := unix.Write(fd, init); err != nil {
			unix.Close(fd)
			unix.Unlink(tmp)
			return -1, oserr.New(oserr.IO, "sem.open", err)
		}

		err = unix.Link(tmp, path)
		unix.Unlink(tmp)
		if err == nil {
			return fd, nil
		}
		unix.Close(fd)
		if err != unix.EEXIST {
			return -1, oserr.New(oserr.IO, "sem.open", err)
		}
		// lost the creation race; reopen whoever won
	}
}

func (s *futexSem) wait() error {
	for {
		v := atomic.LoadUint32(s.ptr)
		if v > 0 {
			if atomic.CompareAndSwapUint32(s.ptr, v, v-1) {
				return nil
			}
			continue
		}

		// sleep while the counter stays zero; spurious wakeups re-loop
		err := futex(s.ptr, futexWait, 0)
		if err != nil && err != unix.EAGAIN && err != unix.EINTR {
			return err
		}
	}
}

func (s *futexSem) post() error {
	atomic.AddUint32(s.ptr, 1)
	return futex(s.ptr, futexWake, 1)
}

func (s *futexSem) close() error {
	return unix.Munmap(s.mem)
}

// futex issues the shared (cross-process) futex op on the counter word.
func futex(addr *uint32, op int, val uint32) error {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), uintptr(op), uintptr(val), 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func unlink(name string) error {
	path, err := backingPath("sem.unlink", name)
	if err != nil {
		return err
	}
	if err := unix.Unlink(path); err != nil {
		return oserr.New(oserr.IO, "sem.unlink", err)
	}
	return nil
}
