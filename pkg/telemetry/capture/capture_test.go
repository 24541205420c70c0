//nolint:funlen // ok for tests
package capture

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "session.f1cap")
	datagrams := [][]byte{
		{0x01},
		{0xde, 0xad, 0xbe, 0xef},
		make([]byte, 1464), // typical full-size telemetry datagram
	}

	w, err := NewWriter(fn)
	require.NoError(t, err)
	for _, d := range datagrams {
		require.NoError(t, w.Write(d))
	}
	require.NoError(t, w.Close())

	r, err := NewReader(fn)
	require.NoError(t, err)
	defer r.Close()

	for i, want := range datagrams {
		got, err := r.Next()
		require.NoError(t, err, "datagram %d", i)
		assert.Equal(t, want, got)
	}
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNextRejectsImplausibleLength(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "corrupt.f1cap")

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], maxDatagramLen+1)
	require.NoError(t, os.WriteFile(fn, lenBuf[:], 0o600))

	r, err := NewReader(fn)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.ErrorContains(t, err, "implausible datagram length")
}

func TestNextRejectsZeroLength(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "zero.f1cap")
	require.NoError(t, os.WriteFile(fn, make([]byte, 4), 0o600))

	r, err := NewReader(fn)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.Error(t, err)
}

func TestNextTruncatedPayload(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "trunc.f1cap")

	var buf [6]byte
	binary.LittleEndian.PutUint32(buf[:4], 100)
	require.NoError(t, os.WriteFile(fn, buf[:], 0o600))

	r, err := NewReader(fn)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
