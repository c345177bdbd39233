package protocol

import (
	"bytes"
	"testing"

	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
	"github.com/stretchr/testify/require"
)

type loopback struct{ *bytes.Buffer }

func (loopback) Close() error { return nil }

func newLoopback() *wire.Wire { return wire.New(loopback{new(bytes.Buffer)}) }

type recordingHandlers struct {
	pf          pixelformat.Format
	encodings   []codec.ID
	incremental bool
	reg         region.Region
	cutText     string
	cutExt      []byte
	channelData []byte
}

func (r *recordingHandlers) SetPixelFormat(f pixelformat.Format) error { r.pf = f; return nil }
func (r *recordingHandlers) SetEncodings(ids []codec.ID) error         { r.encodings = ids; return nil }
func (r *recordingHandlers) FramebufferUpdateRequest(incr bool, reg region.Region) error {
	r.incremental, r.reg = incr, reg
	return nil
}
func (r *recordingHandlers) KeyEvent(down bool, key uint32) error              { return nil }
func (r *recordingHandlers) PointerEvent(mask uint8, x, y uint16) error        { return nil }
func (r *recordingHandlers) ClientCutText(text string) error                   { r.cutText = text; return nil }
func (r *recordingHandlers) ClientCutTextExtended(body []byte) error           { r.cutExt = body; return nil }
func (r *recordingHandlers) EnableContinuousUpdates(bool, region.Region) error { return nil }
func (r *recordingHandlers) SetDesktopSize([]ScreenInfo) error                 { return nil }
func (r *recordingHandlers) ChannelData(body []byte) error                     { r.channelData = body; return nil }

func TestDispatchSetPixelFormat(t *testing.T) {
	w := newLoopback()
	require.NoError(t, w.WriteU8(MsgSetPixelFormat))
	require.NoError(t, w.WriteBytes([]byte{0, 0, 0}))
	require.NoError(t, w.WriteU8(16))
	require.NoError(t, w.WriteU8(16))
	require.NoError(t, w.WriteU8(0))
	require.NoError(t, w.WriteU8(1))
	require.NoError(t, w.WriteU16BE(0x1F))
	require.NoError(t, w.WriteU16BE(0x3F))
	require.NoError(t, w.WriteU16BE(0x1F))
	require.NoError(t, w.WriteU8(11))
	require.NoError(t, w.WriteU8(5))
	require.NoError(t, w.WriteU8(0))
	require.NoError(t, w.WriteBytes([]byte{0, 0, 0}))
	require.NoError(t, w.Flush())

	h := &recordingHandlers{}
	require.NoError(t, DispatchOne(w, h))
	require.EqualValues(t, 16, h.pf.BPP)
	require.EqualValues(t, 0x1F, h.pf.RedMax)
	require.False(t, h.pf.BigEndian)
}

func TestDispatchSetEncodings(t *testing.T) {
	w := newLoopback()
	require.NoError(t, w.WriteU8(MsgSetEncodings))
	require.NoError(t, w.WriteU8(0))
	require.NoError(t, w.WriteU16BE(2))
	require.NoError(t, w.WriteI32BE(int32(codec.Raw)))
	require.NoError(t, w.WriteI32BE(int32(codec.ZRLE)))
	require.NoError(t, w.Flush())

	h := &recordingHandlers{}
	require.NoError(t, DispatchOne(w, h))
	require.Equal(t, []codec.ID{codec.Raw, codec.ZRLE}, h.encodings)
}

// TestTinyRawUpdate exercises a 2x2 Raw
// update reply for the FBUpdateRequest(incr=0, x=0,y=0,w=2,h=2) request.
func TestTinyRawUpdate(t *testing.T) {
	w := newLoopback()
	require.NoError(t, w.WriteU8(MsgFramebufferUpdateRequest))
	require.NoError(t, w.WriteU8(0))
	require.NoError(t, w.WriteU16BE(0))
	require.NoError(t, w.WriteU16BE(0))
	require.NoError(t, w.WriteU16BE(2))
	require.NoError(t, w.WriteU16BE(2))
	require.NoError(t, w.Flush())

	h := &recordingHandlers{}
	require.NoError(t, DispatchOne(w, h))
	require.False(t, h.incremental)
	require.Equal(t, region.New(0, 0, 2, 2), h.reg)

	reply := newLoopback()
	reply.Lock()
	require.NoError(t, WriteFramebufferUpdateHeader(reply, 1))
	require.NoError(t, WriteRectHeader(reply, RectHeader{Reg: h.reg, Encoding: codec.Raw}))
	require.NoError(t, reply.WriteBytes(make([]byte, 8))) // 2x2 @ 16bpp
	require.NoError(t, reply.Flush())
	reply.Unlock()

	msgType, err := reply.ReadU8()
	require.NoError(t, err)
	require.EqualValues(t, MsgFramebufferUpdate, msgType)
	require.NoError(t, reply.Skip(1))
	count, err := reply.ReadU16BE()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDispatchClientCutTextExtended(t *testing.T) {
	w := newLoopback()
	require.NoError(t, w.WriteU8(MsgClientCutText))
	require.NoError(t, w.WriteBytes([]byte{0, 0, 0}))
	require.NoError(t, w.WriteI32BE(-4))
	require.NoError(t, w.WriteBytes([]byte{1, 2, 3, 4}))
	require.NoError(t, w.Flush())

	h := &recordingHandlers{}
	require.NoError(t, DispatchOne(w, h))
	require.Equal(t, []byte{1, 2, 3, 4}, h.cutExt)
}

func TestDispatchUnknownMessageFails(t *testing.T) {
	w := newLoopback()
	require.NoError(t, w.WriteU8(99))
	require.NoError(t, w.Flush())

	err := DispatchOne(w, &recordingHandlers{})
	require.Error(t, err)
}

func TestDispatchLTSMChannel(t *testing.T) {
	w := newLoopback()
	require.NoError(t, w.WriteU8(MsgLTSM))
	require.NoError(t, w.WriteU8(1))       // channel
	require.NoError(t, w.WriteU16BE(0))    // flags
	require.NoError(t, w.WriteU32BE(4))    // length
	require.NoError(t, w.WriteBytes([]byte("ping")))
	require.NoError(t, w.Flush())

	h := &recordingHandlers{}
	require.NoError(t, DispatchOne(w, h))
	require.Equal(t, byte(1), h.channelData[0])
	require.Equal(t, "ping", string(h.channelData[7:]))
}
