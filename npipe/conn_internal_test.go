package npipe

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tailReader hands out its payload together with io.EOF on the same call,
// which the io.Reader contract allows.
type tailReader struct {
	data []byte
}

func (r *tailReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = nil
	return n, io.EOF
}

func (r *tailReader) Write(p []byte) (int, error) { return len(p), nil }
func (r *tailReader) Close() error                { return nil }

func TestReadKeepsBytesArrivingWithEOF(t *testing.T) {
	c := &Conn{rw: &tailReader{data: []byte("tail")}}

	buf := make([]byte, 16)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(buf[:n]))

	n, err = c.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}
