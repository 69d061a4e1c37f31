package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryWindowWord(t *testing.T) {
	arch := ARM64Arch()
	data := []byte{1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}
	w := NewMemoryWindow(0x1000, data)
	data[0] = 0xff // the window owns a copy

	v, err := w.Word(arch, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)

	v, err = w.Word(arch, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), v)

	_, err = w.Word(arch, 2)
	require.Error(t, err)
	_, err = w.Word(arch, -1)
	require.Error(t, err)
}

func TestReadWindowBounds(t *testing.T) {
	b := newFakeBackend(1)
	b.poke64(0x2000, 7)

	_, err := readWindow(b, 1, 0x2000, MaxWindowSize+1)
	var merr *MemoryReadError
	require.ErrorAs(t, err, &merr)
	require.Empty(t, b.calls, "oversized window must be rejected before reading")

	_, err = readWindow(b, 1, 0x2000, 16)
	require.ErrorAs(t, err, &merr)
	code, ok := StatusCode(err)
	require.True(t, ok)
	require.NotZero(t, code)

	w, err := readWindow(b, 1, 0x2000, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0x2000), w.Addr())
	require.Equal(t, 8, w.Len())
}
