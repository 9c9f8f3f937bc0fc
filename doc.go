/*
Package sysport exposes one consistent API over the OS primitives whose
native models diverge hardest between Unix and Windows: process lifecycle,
inter-process byte channels, named counting semaphores, and asynchronous
fault/interrupt delivery.

Each primitive lives in its own subpackage, with exactly one native backing
selected at build time and every platform difference contained inside that
package's build-tagged files:

  - process: spawn a child, wait for it (poll, block, or with a deadline),
    kill or interrupt it, through an exclusively owned handle.
  - pipe: anonymous unidirectional byte channels; closing the write end is
    the end-of-stream signal.
  - npipe: named byte channels for unrelated processes, with
    listen/accept/connect semantics (Unix domain socket or Windows named
    pipe underneath).
  - sem: named cross-process counting semaphores with open-or-create,
    wait, post and unlink.
  - sig: subscription to CPU fault notifications and console interrupts
    through an explicit registry.
  - filemap: shared memory-mapped file views.
  - oserr: the kinded error surface all of the above report through.

Every call is a direct synchronous wrapper around one conceptual
operation; composition (loops, retries, scheduling) belongs to the caller.
The library never prints or logs.

# OS Compatibility

The process, pipe, npipe, filemap and sig packages build for every target
the Go toolchain supports, with the Unix backends shared across POSIX-like
systems. The sem package targets Linux (futex over a shared-memory
counter) and Windows (named kernel semaphores).

On Windows, children are spawned with their own hidden console so that
Process.Interrupt can attach to it and generate a Ctrl+C event without
interrupting the parent; call sites never see this difference.
*/
package sysport
