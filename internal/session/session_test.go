package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ltsm-go/ltsmcore/internal/channelmux"
	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/extclipboard"
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/region"
)

type loopback struct{ *bytes.Buffer }

func (loopback) Close() error { return nil }

type fakeFrames struct {
	w, h   uint16
	damage chan region.Region
}

func (f *fakeFrames) Dimensions() (uint16, uint16) { return f.w, f.h }
func (f *fakeFrames) Snapshot(reg region.Region) (*framebuffer.FrameBuffer, error) {
	return framebuffer.New(region.New(0, 0, reg.W, reg.H), pixelformat.RGBA32), nil
}
func (f *fakeFrames) Damage() <-chan region.Region { return f.damage }

type fakeInput struct {
	lastKey  uint32
	lastDown bool
	lastMask uint8
	lastX    uint16
	lastY    uint16
}

func (f *fakeInput) KeyEvent(down bool, key uint32) error {
	f.lastDown, f.lastKey = down, key
	return nil
}
func (f *fakeInput) PointerEvent(mask uint8, x, y uint16) error {
	f.lastMask, f.lastX, f.lastY = mask, x, y
	return nil
}

type fakeClipboard struct {
	written string
	data    map[extclipboard.TypeMask][]byte
}

func (f *fakeClipboard) ReadClipboard(types extclipboard.TypeMask) (map[extclipboard.TypeMask][]byte, error) {
	return f.data, nil
}
func (f *fakeClipboard) WriteClipboard(text string) error {
	f.written = text
	return nil
}

type fakeDisplay struct{}

func (fakeDisplay) SetDesktopSize(screens []protocol.ScreenInfo) (uint16, uint16, error) {
	return 1024, 768, nil
}

func newTestSession() (*Session, *fakeFrames, *fakeInput, *fakeClipboard) {
	frames := &fakeFrames{w: 640, h: 480, damage: make(chan region.Region, 8)}
	input := &fakeInput{}
	clip := &fakeClipboard{data: map[extclipboard.TypeMask][]byte{extclipboard.TypeText: []byte("hi")}}
	s := New(loopback{new(bytes.Buffer)}, Config{TileSize: 32}, frames, input, clip, fakeDisplay{})
	s.mux = channelmux.New(func(string, string, channelmux.Mode) bool { return true }, senderFunc(s.sendFrame))
	return s, frames, input, clip
}

func TestSetEncodingsActivatesSession(t *testing.T) {
	s, _, _, _ := newTestSession()
	require.NoError(t, s.SetEncodings([]codec.ID{codec.Raw}))
	select {
	case <-s.activatedCh:
	default:
		t.Fatal("expected activatedCh to be closed after SetEncodings")
	}
	require.Equal(t, []codec.ID{codec.Raw}, s.clientEncodings)
}

func TestKeyAndPointerEventsForwardToInputSink(t *testing.T) {
	s, _, input, _ := newTestSession()
	require.NoError(t, s.KeyEvent(true, 0x41))
	require.True(t, input.lastDown)
	require.EqualValues(t, 0x41, input.lastKey)

	require.NoError(t, s.PointerEvent(1, 10, 20))
	require.EqualValues(t, 1, input.lastMask)
	require.EqualValues(t, 10, input.lastX)
	require.EqualValues(t, 20, input.lastY)
}

func TestClientCutTextWritesClipboard(t *testing.T) {
	s, _, _, clip := newTestSession()
	require.NoError(t, s.ClientCutText("pasted text"))
	require.Equal(t, "pasted text", clip.written)
}

func TestClientCutTextExtendedProvideWritesClipboard(t *testing.T) {
	s, _, _, clip := newTestSession()
	body, err := extclipboard.EncodeProvide(map[extclipboard.TypeMask][]byte{extclipboard.TypeText: []byte("from peer")})
	require.NoError(t, err)
	require.NoError(t, s.ClientCutTextExtended(body))
	require.Equal(t, "from peer", clip.written)
}

func TestFramebufferUpdateRequestQueues(t *testing.T) {
	s, _, _, _ := newTestSession()
	require.NoError(t, s.FramebufferUpdateRequest(true, region.New(0, 0, 4, 4)))
	select {
	case req := <-s.updateReqCh:
		require.True(t, req.Incremental)
		require.Equal(t, region.New(0, 0, 4, 4), req.Reg)
	default:
		t.Fatal("expected a queued update request")
	}
}

func TestTakeDamageNonIncrementalReturnsFullRegion(t *testing.T) {
	s, _, _, _ := newTestSession()
	reg, ok := s.takeDamage(updateRequest{Incremental: false, Reg: region.New(0, 0, 100, 100)})
	require.True(t, ok)
	require.Equal(t, region.New(0, 0, 100, 100), reg)
}

func TestTakeDamageIncrementalIntersectsPendingDamage(t *testing.T) {
	s, _, _, _ := newTestSession()
	s.mergeDamage(region.New(10, 10, 20, 20))
	reg, ok := s.takeDamage(updateRequest{Incremental: true, Reg: region.New(0, 0, 100, 100)})
	require.True(t, ok)
	// Damage (10,10,20,20) rounded out to the 4px grid.
	require.Equal(t, region.New(8, 8, 24, 24), reg)

	_, ok = s.takeDamage(updateRequest{Incremental: true, Reg: region.New(0, 0, 100, 100)})
	require.False(t, ok, "damage should be cleared after being taken")
}

func TestChannelOpenAndCloseSystemCommands(t *testing.T) {
	s, _, _, _ := newTestSession()
	open := channelmux.Frame{
		Channel: channelmux.SystemChannel,
		Payload: channelmux.EncodeChannelOpen(3, "fuse", "/mnt/usb", "rw"),
	}
	require.NoError(t, s.ChannelData(open.Encode()))
	_, ok := s.fuseBridge(3)
	require.True(t, ok)
	_, open2 := s.mux.Get(3)
	require.True(t, open2)

	closeCmd := channelmux.Frame{
		Channel: channelmux.SystemChannel,
		Payload: channelmux.EncodeChannelClose(3),
	}
	require.NoError(t, s.ChannelData(closeCmd.Encode()))
	_, ok = s.fuseBridge(3)
	require.False(t, ok)
}
