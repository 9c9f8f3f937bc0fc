// Package process spawns and drives child processes behind one portable
// handle, like os/exec package, but with the lifecycle the rest of sysport
// expects: explicit wait modes (poll, block, deadline), a kill that is
// distinguishable from a normal exit once reaped, and a Ctrl+C-equivalent
// Interrupt that also works on Windows by attaching to the child's console.
//
// A handle moves through three states: Running, Terminated and Closed.
// A successful Wait consumes the handle (it reaps the child and transitions
// straight to Closed); Close releases a handle the caller no longer wants
// to reap. Killing a running child only pushes it toward Terminated - a
// blocking Wait is still needed to observe the exit status.
//
// Handles are not safe for concurrent lifecycle calls from multiple owners;
// exactly one logical owner drives spawn, wait and close.
package process

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/nixpare/sysport/oserr"
)

type state int

const (
	stateRunning state = iota
	stateTerminated
	stateClosed
)

// Stdio binds the child's standard streams. A nil field makes the child
// inherit the parent's stream. A field whose dynamic type carries an
// underlying *os.File (pipe ends do, via their File method) is handed to
// the child directly; anything else is bridged by a copy goroutine owned
// by the runtime.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// WaitMode selects how Wait behaves on a still-running child.
type WaitMode struct {
	block   bool
	timeout time.Duration
}

var (
	// NoHang polls once: a still-running child fails with ErrTimedOut.
	NoHang = WaitMode{}

	// Block waits indefinitely for the child to terminate.
	Block = WaitMode{block: true}
)

// Deadline waits up to d for the child to terminate, then fails with
// ErrTimedOut leaving the handle waitable.
func Deadline(d time.Duration) WaitMode {
	return WaitMode{block: true, timeout: d}
}

// Process is an exclusive handle to a spawned child.
type Process struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	mu     sync.Mutex
	state  state
	status ExitStatus
}

// filer is satisfied by pipe ends and anything else that can surrender a
// real descriptor for direct stdio binding.
type filer interface {
	File() *os.File
}

// Spawn starts path with the given argument vector. argv[0] is passed to
// the child as-is (conventionally the program name) and is never re-derived
// from path. The child inherits the parent's full environment.
//
// Spawn either returns a fully valid running handle or an error of kind
// Spawn; never a handle to a process that does not exist.
func Spawn(path string, argv []string, stdio *Stdio) (*Process, error) {
	if path == "" || len(argv) == 0 {
		return nil, oserr.Errorf(oserr.InvalidArgument, "process.spawn",
			"path and argv[0] are required")
	}

	cmd := newCommand(path, argv)
	bindStdio(cmd, stdio)

	if err := cmd.Start(); err != nil {
		return nil, oserr.New(oserr.Spawn, "process.spawn", err)
	}

	p := &Process{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go p.reap()

	return p, nil
}

func bindStdio(cmd *exec.Cmd, stdio *Stdio) {
	if stdio == nil {
		stdio = &Stdio{}
	}

	if stdio.In == nil {
		cmd.Stdin = os.Stdin
	} else if f, ok := stdio.In.(filer); ok && f.File() != nil {
		cmd.Stdin = f.File()
	} else {
		cmd.Stdin = stdio.In
	}

	if stdio.Out == nil {
		cmd.Stdout = os.Stdout
	} else if f, ok := stdio.Out.(filer); ok && f.File() != nil {
		cmd.Stdout = f.File()
	} else {
		cmd.Stdout = stdio.Out
	}

	if stdio.Err == nil {
		cmd.Stderr = os.Stderr
	} else if f, ok := stdio.Err.(filer); ok && f.File() != nil {
		cmd.Stderr = f.File()
	} else {
		cmd.Stderr = stdio.Err
	}
}

// reap waits for the child on a dedicated goroutine, records the decoded
// exit status and releases every waiter blocked on done.
func (p *Process) reap() {
	err := p.cmd.Wait()
	st := decodeStatus(p.pid, p.cmd, err)

	p.mu.Lock()
	p.status = st
	if p.state == stateRunning {
		p.state = stateTerminated
	}
	p.mu.Unlock()

	close(p.done)
}

// Wait observes the child's termination according to mode.
//
// NoHang on a running child fails with ErrTimedOut: "not done yet" is a
// distinct outcome, never an empty success. On success the handle is
// consumed - the terminated child is reaped and a further Wait or Close
// fails with ErrClosed.
func (p *Process) Wait(mode WaitMode) (ExitStatus, error) {
	p.mu.Lock()
	switch p.state {
	case stateClosed:
		p.mu.Unlock()
		return ExitStatus{}, oserr.New(oserr.Closed, "process.wait", nil)
	case stateTerminated:
		return p.consumeLocked(), nil
	}
	p.mu.Unlock()

	if !mode.block {
		return ExitStatus{}, oserr.New(oserr.TimedOut, "process.wait", nil)
	}

	if mode.timeout > 0 {
		t := time.NewTimer(mode.timeout)
		defer t.Stop()
		select {
		case <-p.done:
		case <-t.C:
			return ExitStatus{}, oserr.New(oserr.TimedOut, "process.wait", nil)
		}
	} else {
		<-p.done
	}

	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return ExitStatus{}, oserr.New(oserr.Closed, "process.wait", nil)
	}
	return p.consumeLocked(), nil
}

// consumeLocked hands out the recorded status and retires the handle.
// Callers hold p.mu; it is released here.
func (p *Process) consumeLocked() ExitStatus {
	st := p.status
	p.state = stateClosed
	p.mu.Unlock()
	return st
}

// Kill requests forceful termination. It does not reap: follow up with a
// blocking Wait to observe the exit status and release OS resources.
func (p *Process) Kill() error {
	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return oserr.New(oserr.Closed, "process.kill", nil)
	}
	p.mu.Unlock()

	if err := kill(p.cmd.Process); err != nil {
		return oserr.New(oserr.IO, "process.kill", err)
	}
	return nil
}

// Interrupt delivers the platform's Ctrl+C equivalent to the child: SIGINT
// on Unix, a console control event on Windows. The child decides whether
// to handle it.
func (p *Process) Interrupt() error {
	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return oserr.New(oserr.Closed, "process.interrupt", nil)
	}
	p.mu.Unlock()

	if err := interrupt(p.cmd.Process); err != nil {
		return oserr.New(oserr.IO, "process.interrupt", err)
	}
	return nil
}

// ID returns the child's numeric OS identity. It is informational only:
// the OS may recycle it after termination, so it must never be retained
// past the handle's life as a name for the process.
func (p *Process) ID() int {
	return p.pid
}

// Running reports whether the child has not terminated yet.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateRunning
}

// Close retires the handle without waiting. It applies only when the
// handle was not already consumed by a successful Wait. The reaper
// goroutine keeps ownership of the OS process and still collects it when
// the child terminates; Close never touches it.
func (p *Process) Close() error {
	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return oserr.New(oserr.Closed, "process.close", nil)
	}
	p.state = stateClosed
	p.mu.Unlock()

	return nil
}
