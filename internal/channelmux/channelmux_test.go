package channelmux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ltsm-go/ltsmcore/internal/wire"
)

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	fr := Frame{Channel: 3, Flags: FlagFinal, Payload: []byte("hello")}
	got, n, ok := DecodeFrame(fr.Encode())
	require.True(t, ok)
	require.Equal(t, len(fr.Encode()), n)
	require.Equal(t, fr, got)
}

func TestDecodeFrameIncompleteReturnsNotOK(t *testing.T) {
	fr := Frame{Channel: 1, Payload: []byte("partial")}
	encoded := fr.Encode()

	_, _, ok := DecodeFrame(encoded[:5])
	require.False(t, ok)

	_, _, ok = DecodeFrame(encoded[:len(encoded)-1])
	require.False(t, ok)
}

func TestReassemblerFeedSplitsAcrossChunks(t *testing.T) {
	fr1 := Frame{Channel: 1, Payload: []byte("first")}
	fr2 := Frame{Channel: 2, Payload: []byte("second")}
	whole := append(fr1.Encode(), fr2.Encode()...)

	var r Reassembler
	frames, err := r.Feed(whole[:4])
	require.NoError(t, err)
	require.Empty(t, frames)

	frames, err = r.Feed(whole[4:])
	require.NoError(t, err)
	require.Equal(t, []Frame{fr1, fr2}, frames)
}

func TestParseSystemCommand(t *testing.T) {
	payload := EncodeChannelOpen(5, "fuse", "/mnt/usb", "rw")
	sc, err := ParseSystemCommand(payload)
	require.NoError(t, err)
	require.Equal(t, CmdChannelOpen, sc.Cmd)
}

func TestModeFromString(t *testing.T) {
	require.Equal(t, ModeRead, ModeFromString("ro"))
	require.Equal(t, ModeWrite, ModeFromString("wo"))
	require.Equal(t, ModeReadWrite, ModeFromString("rw"))
	require.Equal(t, ModeReadWrite, ModeFromString(""))
}

type loopbackStream struct{ *bytes.Buffer }

func (loopbackStream) Close() error { return nil }

// TestWriteServerFrame checks the server-to-client piggy-back shape: a
// zero-size rectangle with the LTSM encoding id, u32 rawSize, u32
// payloadSize, then the encoded channel frame.
func TestWriteServerFrame(t *testing.T) {
	buf := new(bytes.Buffer)
	w := wire.New(loopbackStream{buf})

	fr := Frame{Channel: 1, Payload: []byte("ping")}
	w.Lock()
	require.NoError(t, WriteServerFrame(w, fr))
	require.NoError(t, w.Flush())
	w.Unlock()

	out := buf.Bytes()
	// Rect header: x=0 y=0 w=0 h=0, encoding 0x4C54534D ("LTSM").
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0x4C, 0x54, 0x53, 0x4D}, out[:12])
	// rawSize = 4 ("ping"), payloadSize = 11 (7-byte header + 4).
	require.Equal(t, []byte{0, 0, 0, 4, 0, 0, 0, 11}, out[12:20])
	require.Equal(t, fr.Encode(), out[20:])

	// And the reader side consumes it back to the same frame.
	r := wire.New(loopbackStream{bytes.NewBuffer(out[12:])})
	got, err := ReadServerFrame(r)
	require.NoError(t, err)
	require.Equal(t, fr, got)
}

type loopbackChannel struct{ bytes.Buffer }

func (l *loopbackChannel) Close() error { return nil }

type recordingSender struct{ sent []Frame }

func (s *recordingSender) SendFrame(fr Frame) error {
	s.sent = append(s.sent, fr)
	return nil
}

func TestMuxOpenDispatchAndClose(t *testing.T) {
	allow := func(kind, target string, mode Mode) bool { return kind == "fuse" }
	sender := &recordingSender{}
	m := New(allow, sender)

	local := &loopbackChannel{}
	ch, err := m.Open(4, "fuse", "/mnt/usb", ModeReadWrite, local)
	require.NoError(t, err)
	require.Equal(t, uint8(4), ch.ID)

	require.NoError(t, m.Dispatch(Frame{Channel: 4, Payload: []byte("payload")}))
	require.Equal(t, "payload", local.String())

	require.NoError(t, m.Send(Frame{Channel: 4, Payload: []byte("reply")}))
	require.Len(t, sender.sent, 1)

	require.NoError(t, m.Close(4))
	require.True(t, ch.Closed())
	require.NoError(t, m.Close(4))
}

func TestMuxOpenDeniedByAllowFunc(t *testing.T) {
	m := New(func(string, string, Mode) bool { return false }, &recordingSender{})
	_, err := m.Open(1, "pkcs11", "/dev/tpm", ModeRead, nil)
	require.Error(t, err)
}

func TestMuxOpenRejectsSystemChannelAndDuplicateID(t *testing.T) {
	m := New(func(string, string, Mode) bool { return true }, &recordingSender{})
	_, err := m.Open(SystemChannel, "fuse", "/mnt", ModeRead, nil)
	require.Error(t, err)

	_, err = m.Open(2, "fuse", "/mnt", ModeRead, nil)
	require.NoError(t, err)
	_, err = m.Open(2, "fuse", "/mnt2", ModeRead, nil)
	require.Error(t, err)
}

func TestMuxDispatchUnknownChannelIsChannelError(t *testing.T) {
	m := New(func(string, string, Mode) bool { return true }, &recordingSender{})
	err := m.Dispatch(Frame{Channel: 9, Payload: []byte("x")})
	require.Error(t, err)
}

func TestMuxShutdownClosesAllChannels(t *testing.T) {
	m := New(func(string, string, Mode) bool { return true }, &recordingSender{})
	ch1, err := m.Open(1, "fuse", "/a", ModeRead, &loopbackChannel{})
	require.NoError(t, err)
	ch2, err := m.Open(2, "pkcs11", "/b", ModeRead, &loopbackChannel{})
	require.NoError(t, err)

	m.Shutdown()
	require.True(t, ch1.Closed())
	require.True(t, ch2.Closed())
	require.Empty(t, m.Channels())
}
