//go:build linux

package sem_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixpare/sysport/oserr"
	"github.com/nixpare/sysport/sem"
)

func semName(t *testing.T) string {
	t.Helper()
	return "sysport-test-" + uuid.NewString()[:8]
}

// waitInBackground starts s.Wait on a goroutine and returns a channel
// closed when it completes.
func waitInBackground(t *testing.T, s *sem.Semaphore) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Wait(); err != nil {
			t.Errorf("background wait: %v", err)
		}
	}()
	return done
}

func TestWaitPost(t *testing.T) {
	name := semName(t)
	s, err := sem.Open(name, true, 1)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, s.Close())
		require.NoError(t, sem.Unlink(name))
	}()

	// counter is 1: the first wait must not block
	require.NoError(t, s.Wait())

	// counter is 0 now: a second wait blocks until a post
	done := waitInBackground(t, s)
	select {
	case <-done:
		t.Fatal("wait returned on a zero counter")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, s.Post())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("post did not release the waiter")
	}
}

func TestTwoHandlesShareOneCounter(t *testing.T) {
	name := semName(t)
	a, err := sem.Open(name, true, 0)
	require.NoError(t, err)
	defer sem.Unlink(name)
	defer a.Close()

	// initial value of a second create-or-open is ignored
	b, err := sem.Open(name, true, 7)
	require.NoError(t, err)
	defer b.Close()

	done := waitInBackground(t, b)
	select {
	case <-done:
		t.Fatal("counter was re-initialized by the second open")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, a.Post())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("post through one handle did not release the other's waiter")
	}
}

func TestUnlinkKeepsOpenHandlesAlive(t *testing.T) {
	name := semName(t)
	s, err := sem.Open(name, true, 2)
	require.NoError(t, err)

	require.NoError(t, sem.Unlink(name))

	// the unlinked counter still serves its holders
	require.NoError(t, s.Wait())
	require.NoError(t, s.Post())
	require.NoError(t, s.Wait())
	require.NoError(t, s.Close())

	// a fresh create after full closure is an independent counter
	s2, err := sem.Open(name, true, 1)
	require.NoError(t, err)
	require.NoError(t, s2.Wait())
	require.NoError(t, s2.Close())
	require.NoError(t, sem.Unlink(name))
}

func TestOpenMissingWithoutCreate(t *testing.T) {
	_, err := sem.Open(semName(t), false, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oserr.ErrIO))
}

func TestNameValidation(t *testing.T) {
	_, err := sem.Open("bad/name", true, 0)
	assert.True(t, errors.Is(err, oserr.ErrInvalidArgument))

	_, err = sem.Open(strings.Repeat("x", 300), true, 0)
	assert.True(t, errors.Is(err, oserr.ErrInvalidArgument))

	_, err = sem.Open("", true, 0)
	assert.True(t, errors.Is(err, oserr.ErrInvalidArgument))
}

func TestDoubleClose(t *testing.T) {
	name := semName(t)
	s, err := sem.Open(name, true, 0)
	require.NoError(t, err)
	defer sem.Unlink(name)

	require.NoError(t, s.Close())
	assert.True(t, errors.Is(s.Close(), oserr.ErrClosed))
	assert.True(t, errors.Is(s.Post(), oserr.ErrClosed))
}
