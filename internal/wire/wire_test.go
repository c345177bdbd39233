package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type loopback struct {
	*bytes.Buffer
}

func (l loopback) Close() error { return nil }

func newLoopback() *Wire {
	return New(loopback{new(bytes.Buffer)})
}

func TestWireBigEndianRoundTrip(t *testing.T) {
	w := newLoopback()

	require.NoError(t, w.WriteU8(0x42))
	require.NoError(t, w.WriteU16BE(0x1234))
	require.NoError(t, w.WriteU32BE(0xDEADBEEF))
	require.NoError(t, w.WriteI32BE(-313))
	require.NoError(t, w.WriteString("ltsm"))
	require.NoError(t, w.Flush())

	b, err := w.ReadU8()
	require.NoError(t, err)
	require.EqualValues(t, 0x42, b)

	u16, err := w.ReadU16BE()
	require.NoError(t, err)
	require.EqualValues(t, 0x1234, u16)

	u32, err := w.ReadU32BE()
	require.NoError(t, err)
	require.EqualValues(t, 0xDEADBEEF, u32)

	i32, err := w.ReadI32BE()
	require.NoError(t, err)
	require.EqualValues(t, -313, i32)

	s, err := w.ReadString()
	require.NoError(t, err)
	require.Equal(t, "ltsm", s)
}

func TestWireClientByteOrder(t *testing.T) {
	w := newLoopback()

	require.NoError(t, w.WriteU16(binary.LittleEndian, 0xBEEF))
	require.NoError(t, w.Flush())

	v, err := w.ReadU16(binary.LittleEndian)
	require.NoError(t, err)
	require.EqualValues(t, 0xBEEF, v)
}

func TestWireClosedOnEOF(t *testing.T) {
	w := New(loopback{new(bytes.Buffer)})
	_, err := w.ReadU8()
	require.Error(t, err)
	require.ErrorIs(t, err, io.EOF)
}

func TestWireSkipAndPeek(t *testing.T) {
	w := newLoopback()
	require.NoError(t, w.WriteBytes([]byte{0, 0, 0, 7}))
	require.NoError(t, w.Flush())

	peeked, err := w.PeekU8()
	require.NoError(t, err)
	require.EqualValues(t, 0, peeked)

	require.NoError(t, w.Skip(3))
	last, err := w.ReadU8()
	require.NoError(t, err)
	require.EqualValues(t, 7, last)
}
