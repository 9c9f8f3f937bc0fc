package npipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"

	"github.com/nixpare/sysport/oserr"
)

func TestClosedListenerRefusesAccept(t *testing.T) {
	l, err := Listen(`\\.\pipe\sysport-test-closed-listener`)
	require.NoError(t, err)

	require.NoError(t, l.Close())

	_, err = l.Accept()
	assert.True(t, errors.Is(err, oserr.ErrClosed))
}

func TestCloseReleasesPendingInstance(t *testing.T) {
	l, err := Listen(`\\.\pipe\sysport-test-close-instance`)
	require.NoError(t, err)

	impl := l.impl.(*winListener)
	require.NoError(t, l.Close())

	impl.mu.Lock()
	defer impl.mu.Unlock()
	assert.True(t, impl.closed)
	assert.Equal(t, windows.InvalidHandle, impl.next)
}
