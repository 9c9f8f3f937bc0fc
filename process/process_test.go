package process_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixpare/sysport/oserr"
	"github.com/nixpare/sysport/pipe"
	"github.com/nixpare/sysport/process"
)

// The test binary doubles as the spawn target: when re-executed with
// helperFlag it behaves as a small scripted child instead of running the
// test suite.
const helperFlag = "-sysport-child"

func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == helperFlag {
		os.Exit(childMain(os.Args[2:]))
	}
	os.Exit(m.Run())
}

func childMain(args []string) int {
	if len(args) == 0 {
		return 255
	}
	switch args[0] {
	case "exit":
		code, err := strconv.Atoi(args[1])
		if err != nil {
			return 255
		}
		return code
	case "echo":
		if _, err := io.Copy(os.Stdout, os.Stdin); err != nil {
			return 1
		}
		return 0
	case "sleep":
		time.Sleep(time.Minute)
		return 0
	}
	return 255
}

func spawnChild(t *testing.T, stdio *process.Stdio, args ...string) *process.Process {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)

	argv := append([]string{self, helperFlag}, args...)
	p, err := process.Spawn(self, argv, stdio)
	require.NoError(t, err)
	return p
}

func TestNormalExit(t *testing.T) {
	p := spawnChild(t, nil, "exit", "7")

	st, err := p.Wait(process.Block)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Code)
	assert.False(t, st.Signaled)
	assert.Equal(t, p.ID(), st.PID)
	assert.Error(t, st.Err())
}

func TestNoHangThenKill(t *testing.T) {
	p := spawnChild(t, nil, "sleep")

	_, err := p.Wait(process.NoHang)
	require.True(t, errors.Is(err, oserr.ErrTimedOut))

	require.NoError(t, p.Kill())

	st, err := p.Wait(process.Block)
	require.NoError(t, err)
	assert.True(t, st.Signaled)
	assert.Negative(t, st.Code)

	// the handle was consumed by the successful wait
	_, err = p.Wait(process.NoHang)
	assert.True(t, errors.Is(err, oserr.ErrClosed))
}

func TestDeadlineWait(t *testing.T) {
	p := spawnChild(t, nil, "sleep")

	_, err := p.Wait(process.Deadline(50 * time.Millisecond))
	require.True(t, errors.Is(err, oserr.ErrTimedOut))

	// the handle stays waitable after a deadline expiry
	require.NoError(t, p.Kill())
	st, err := p.Wait(process.Block)
	require.NoError(t, err)
	assert.True(t, st.Signaled)
}

func TestStdioThroughPipes(t *testing.T) {
	inR, inW, err := pipe.Create()
	require.NoError(t, err)
	outR, outW, err := pipe.Create()
	require.NoError(t, err)

	p := spawnChild(t, &process.Stdio{In: inR, Out: outW}, "echo")

	// the child holds duplicates of these ends now
	require.NoError(t, inR.Close())
	require.NoError(t, outW.Close())

	payload := []byte("ping across the child")
	require.NoError(t, inW.WriteAll(payload))
	require.NoError(t, inW.Close())

	var got bytes.Buffer
	buf := make([]byte, 8)
	for {
		n, err := outR.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got.Write(buf[:n])
	}
	require.NoError(t, outR.Close())
	assert.Equal(t, payload, got.Bytes())

	st, err := p.Wait(process.Block)
	require.NoError(t, err)
	assert.Zero(t, st.Code)
}

func TestSpawnFailure(t *testing.T) {
	_, err := process.Spawn("/nonexistent/sysport-no-such-binary",
		[]string{"sysport-no-such-binary"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oserr.ErrSpawn))
}

func TestSpawnArgvRequired(t *testing.T) {
	_, err := process.Spawn("/bin/true", nil, nil)
	assert.True(t, errors.Is(err, oserr.ErrInvalidArgument))
}

func TestCloseWithoutWait(t *testing.T) {
	p := spawnChild(t, nil, "exit", "0")
	require.NoError(t, p.Close())

	assert.True(t, errors.Is(p.Close(), oserr.ErrClosed))
	_, err := p.Wait(process.Block)
	assert.True(t, errors.Is(err, oserr.ErrClosed))
	assert.True(t, errors.Is(p.Kill(), oserr.ErrClosed))
}

func TestCloseWhileReaping(t *testing.T) {
	p := spawnChild(t, nil, "sleep")
	require.NoError(t, p.Kill())

	// close while the background reaper is still collecting the child
	require.NoError(t, p.Close())

	_, err := p.Wait(process.Block)
	assert.True(t, errors.Is(err, oserr.ErrClosed))
}

func TestInterrupt(t *testing.T) {
	p := spawnChild(t, nil, "sleep")

	// give the child a moment to come up before signaling it
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Interrupt())

	st, err := p.Wait(process.Block)
	require.NoError(t, err)
	assert.True(t, st.Signaled)
}
