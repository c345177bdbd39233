package channelmux

import (
	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// WriteServerFrame piggy-backs fr on a FramebufferUpdate rectangle with
// encoding id ENCODING_LTSM, body `u32 rawSize, u32 payloadSize,
// payload`. rawSize is the frame's inner payload
// length before channel framing; payloadSize is the length of the encoded
// channel frame that follows. The caller must hold w.Lock() for the whole
// FramebufferUpdate (header + every rectangle).
func WriteServerFrame(w *wire.Wire, fr Frame) error {
	encoded := fr.Encode()
	if err := protocol.WriteRectHeader(w, protocol.RectHeader{
		Reg:      region.Region{},
		Encoding: codec.LTSM,
	}); err != nil {
		return err
	}
	if err := w.WriteU32BE(uint32(len(fr.Payload))); err != nil {
		return err
	}
	if err := w.WriteU32BE(uint32(len(encoded))); err != nil {
		return err
	}
	return w.WriteBytes(encoded)
}

// ReadServerFrame reads one LTSM rectangle body from w, assuming the
// caller already consumed the rectangle's fixed header and confirmed its
// encoding is codec.LTSM.
func ReadServerFrame(w *wire.Wire) (Frame, error) {
	if _, err := w.ReadU32BE(); err != nil { // rawSize, informational
		return Frame{}, err
	}
	payloadSize, err := w.ReadU32BE()
	if err != nil {
		return Frame{}, err
	}
	buf := make([]byte, payloadSize)
	if err := w.ReadExact(buf); err != nil {
		return Frame{}, err
	}
	fr, _, ok := DecodeFrame(buf)
	if !ok {
		return Frame{}, ltsmerr.New(ltsmerr.ChannelError, "truncated LTSM rectangle frame")
	}
	return fr, nil
}
