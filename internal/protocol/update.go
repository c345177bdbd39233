package protocol

import (
	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// RectHeader is the fixed part of one FramebufferUpdate rectangle:
// i16 x, i16 y, u16 w, u16 h, i32 encoding, followed by the
// encoding-specific body the caller writes separately.
type RectHeader struct {
	Reg      region.Region
	Encoding codec.ID
}

// WriteFramebufferUpdateHeader writes the message byte, pad byte, and rect
// count that begin a FramebufferUpdate. Callers must hold
// w.Lock() for the whole update (header + every rectangle body) so rect
// order on the wire can never interleave with another writer.
func WriteFramebufferUpdateHeader(w *wire.Wire, rectCount uint16) error {
	if err := w.WriteU8(MsgFramebufferUpdate); err != nil {
		return err
	}
	if err := w.WriteU8(0); err != nil { // pad
		return err
	}
	return w.WriteU16BE(rectCount)
}

// WriteRectHeader writes one rectangle's fixed header; the caller follows
// with the encoding-specific body (a Codec.Encode call, an LTSM mux frame,
// or nothing for a pure pseudo-encoding like LastRect).
func WriteRectHeader(w *wire.Wire, h RectHeader) error {
	if err := w.WriteI16BE(h.Reg.X); err != nil {
		return err
	}
	if err := w.WriteI16BE(h.Reg.Y); err != nil {
		return err
	}
	if err := w.WriteU16BE(h.Reg.W); err != nil {
		return err
	}
	if err := w.WriteU16BE(h.Reg.H); err != nil {
		return err
	}
	return w.WriteI32BE(int32(h.Encoding))
}

// WriteLastRect writes the zero-size LastRect pseudo-encoding rectangle that
// terminates an update's rect list early.
func WriteLastRect(w *wire.Wire) error {
	return WriteRectHeader(w, RectHeader{Encoding: codec.LastRect})
}

// WriteBell writes the server-to-client Bell message (RFB message type 2).
func WriteBell(w *wire.Wire) error {
	w.Lock()
	defer w.Unlock()
	if err := w.WriteU8(MsgBell); err != nil {
		return err
	}
	return w.Flush()
}

// WriteServerCutText writes a plain-text ServerCutText message (RFB message
// type 3, non-negative length).
func WriteServerCutText(w *wire.Wire, text string) error {
	w.Lock()
	defer w.Unlock()
	if err := w.WriteU8(MsgServerCutText); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte{0, 0, 0}); err != nil {
		return err
	}
	if err := w.WriteU32BE(uint32(len(text))); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(text)); err != nil {
		return err
	}
	return w.Flush()
}
