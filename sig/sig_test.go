//go:build !windows

package sig_test

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/nixpare/sysport/oserr"
	"github.com/nixpare/sysport/sig"
)

// sink defeats dead-load elimination in the faulting snippets.
var sink int

func addrAsInt(addr uintptr) *int {
	return (*int)(unsafe.Pointer(addr)) //nolint:govet // deliberate bad pointer
}

func readAddr(addr uintptr) func() {
	return func() {
		sink = *addrAsInt(addr)
	}
}

// badPage reserves an inaccessible page, so a read of it faults at a real
// (non-nil-page) address.
func badPage(t *testing.T) uintptr {
	t.Helper()
	mem, err := unix.Mmap(-1, 0, os.Getpagesize(),
		unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Munmap(mem) })
	return uintptr(unsafe.Pointer(&mem[0]))
}

func divideByZero() {
	d := len("") // zero the compiler cannot see through
	sink = 1 / d
}

func TestTrapDeliversAccessViolation(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	var got []sig.Event
	prev, err := r.Subscribe(func(ev sig.Event) { got = append(got, ev) },
		sig.AccessViolation)
	require.NoError(t, err)
	assert.Nil(t, prev)

	addr := badPage(t)
	err = r.Trap(readAddr(addr))
	require.Error(t, err)

	var tf *sig.TrappedFault
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, sig.AccessViolation, tf.Event.Kind)
	assert.Equal(t, addr, tf.Event.Addr)

	require.Len(t, got, 1)
	assert.Equal(t, tf.Event, got[0])
}

func TestTrapNilDereference(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	_, err := r.Subscribe(func(sig.Event) {}, sig.AccessViolation)
	require.NoError(t, err)

	err = r.Trap(func() {
		var p *int
		sink = *p
	})
	var tf *sig.TrappedFault
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, sig.AccessViolation, tf.Event.Kind)
	assert.Zero(t, tf.Event.Addr)
}

func TestTrapArithmetic(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	_, err := r.Subscribe(func(sig.Event) {}, sig.Arithmetic)
	require.NoError(t, err)

	err = r.Trap(divideByZero)
	var tf *sig.TrappedFault
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, sig.Arithmetic, tf.Event.Kind)
}

func TestOneShotDisarm(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	var calls atomic.Int32
	_, err := r.Subscribe(func(sig.Event) { calls.Add(1) }, sig.AccessViolation)
	require.NoError(t, err)

	require.Error(t, r.Trap(readAddr(0x16)))
	assert.Equal(t, int32(1), calls.Load())

	// the kind is disarmed now: the same fault is no longer caught and
	// propagates as a plain panic
	assert.Panics(t, func() { _ = r.Trap(readAddr(0x16)) })
	assert.Equal(t, int32(1), calls.Load())

	// re-subscribing re-arms
	_, err = r.Subscribe(func(sig.Event) { calls.Add(1) }, sig.AccessViolation)
	require.NoError(t, err)
	require.Error(t, r.Trap(readAddr(0x16)))
	assert.Equal(t, int32(2), calls.Load())
}

func TestNonFaultPanicPropagates(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	_, err := r.Subscribe(func(sig.Event) {}, sig.AccessViolation)
	require.NoError(t, err)

	assert.PanicsWithValue(t, "boom", func() {
		_ = r.Trap(func() { panic("boom") })
	})
}

func TestUnarmedKindPropagates(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	// nothing subscribed at all
	assert.Panics(t, func() { _ = r.Trap(readAddr(0x16)) })
}

func TestStackOverflowUnsupported(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	_, err := r.Subscribe(func(sig.Event) {}, sig.StackOverflow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oserr.ErrUnsupported))
}

func TestSubscribeReplaces(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	var first, second atomic.Int32
	_, err := r.Subscribe(func(sig.Event) { first.Add(1) }, sig.AccessViolation)
	require.NoError(t, err)

	prev, err := r.Subscribe(func(sig.Event) { second.Add(1) }, sig.AccessViolation)
	require.NoError(t, err)
	require.NotNil(t, prev)
	prev(sig.Event{})
	assert.Equal(t, int32(1), first.Load())

	require.Error(t, r.Trap(readAddr(0x16)))
	assert.Equal(t, int32(1), second.Load())
	assert.Equal(t, int32(1), first.Load())
}

func TestInterruptSubscription(t *testing.T) {
	r := sig.NewRegistry()
	defer r.Close()

	var hits atomic.Int32
	prev := r.SubscribeInterrupt(func() { hits.Add(1) })
	assert.Nil(t, prev)

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGINT))
	require.Eventually(t, func() bool { return hits.Load() >= 1 },
		5*time.Second, 10*time.Millisecond)

	// last subscription wins; the old callback stops firing
	var hits2 atomic.Int32
	prev = r.SubscribeInterrupt(func() { hits2.Add(1) })
	require.NotNil(t, prev)

	before := hits.Load()
	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGINT))
	require.Eventually(t, func() bool { return hits2.Load() >= 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, before, hits.Load())
}

func TestInterruptResubscribeAfterClose(t *testing.T) {
	r := sig.NewRegistry()

	var stale atomic.Int32
	r.SubscribeInterrupt(func() { stale.Add(1) })
	r.Close()

	// closing detached delivery; a new subscription re-attaches it
	var hits atomic.Int32
	r.SubscribeInterrupt(func() { hits.Add(1) })
	defer r.Close()

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGINT))
	require.Eventually(t, func() bool { return hits.Load() >= 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Zero(t, stale.Load())
}
