// Server message loop: read one u8 message type, decode its body, and
// hand off to a Handlers implementation (internal/session wires this to
// the FrameSource/InputSink/ChannelMux/ExtClipboard collaborators). The
// dispatcher itself carries no business logic -- only message framing.
package protocol

import (
	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// ScreenInfo is one entry of a SetDesktopSize screen layout proposal.
type ScreenInfo struct {
	ID    uint32
	X, Y  uint16
	W, H  uint16
	Flags uint32
}

// Handlers receives decoded client-to-server messages. SetPixelFormat
// and SetEncodings must wait for any in-flight update to drain,
// which the Handlers implementation (not this dispatcher) is responsible for.
type Handlers interface {
	SetPixelFormat(f pixelformat.Format) error
	SetEncodings(ids []codec.ID) error
	FramebufferUpdateRequest(incremental bool, reg region.Region) error
	KeyEvent(down bool, key uint32) error
	PointerEvent(buttonMask uint8, x, y uint16) error
	// ClientCutText delivers a plain paste (length >= 0).
	ClientCutText(text string) error
	// ClientCutTextExtended delivers an Extended Clipboard frame body,
	// triggered when the wire length field was negative.
	ClientCutTextExtended(body []byte) error
	EnableContinuousUpdates(enable bool, reg region.Region) error
	SetDesktopSize(screens []ScreenInfo) error
	// ChannelData delivers one LTSM mux frame body read from message type
	// 119; framing (channel/flags/length) is decoded by the
	// caller of this dispatcher's Dispatch loop via internal/channelmux.
	ChannelData(body []byte) error
}

// DispatchOne reads and handles exactly one client-to-server message.
// Unknown message types are fatal.
func DispatchOne(w *wire.Wire, h Handlers) error {
	msgType, err := w.ReadU8()
	if err != nil {
		return err
	}
	switch msgType {
	case MsgSetPixelFormat:
		return dispatchSetPixelFormat(w, h)
	case MsgSetEncodings:
		return dispatchSetEncodings(w, h)
	case MsgFramebufferUpdateRequest:
		return dispatchFBUpdateRequest(w, h)
	case MsgKeyEvent:
		return dispatchKeyEvent(w, h)
	case MsgPointerEvent:
		return dispatchPointerEvent(w, h)
	case MsgClientCutText:
		return dispatchClientCutText(w, h)
	case MsgEnableContinuousUpdates:
		return dispatchEnableContinuousUpdates(w, h)
	case MsgSetDesktopSize:
		return dispatchSetDesktopSize(w, h)
	case MsgLTSM:
		return dispatchLTSM(w, h)
	default:
		return ltsmerr.New(ltsmerr.Format, "unknown message type")
	}
}

func dispatchSetPixelFormat(w *wire.Wire, h Handlers) error {
	if err := w.Skip(3); err != nil { // padding
		return err
	}
	f, err := readPixelFormatRecord(w)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	return h.SetPixelFormat(f)
}

func dispatchSetEncodings(w *wire.Wire, h Handlers) error {
	if err := w.Skip(1); err != nil {
		return err
	}
	n, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	ids := make([]codec.ID, n)
	for i := range ids {
		v, err := w.ReadI32BE()
		if err != nil {
			return err
		}
		ids[i] = codec.ID(v)
	}
	return h.SetEncodings(ids)
}

func dispatchFBUpdateRequest(w *wire.Wire, h Handlers) error {
	incr, err := w.ReadU8()
	if err != nil {
		return err
	}
	x, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	y, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	ww, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	hh, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	reg := region.New(int16(x), int16(y), ww, hh)
	return h.FramebufferUpdateRequest(incr != 0, reg)
}

func dispatchKeyEvent(w *wire.Wire, h Handlers) error {
	down, err := w.ReadU8()
	if err != nil {
		return err
	}
	if err := w.Skip(2); err != nil {
		return err
	}
	key, err := w.ReadU32BE()
	if err != nil {
		return err
	}
	return h.KeyEvent(down != 0, key)
}

func dispatchPointerEvent(w *wire.Wire, h Handlers) error {
	mask, err := w.ReadU8()
	if err != nil {
		return err
	}
	x, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	y, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	return h.PointerEvent(mask, x, y)
}

func dispatchClientCutText(w *wire.Wire, h Handlers) error {
	if err := w.Skip(3); err != nil {
		return err
	}
	length, err := w.ReadI32BE()
	if err != nil {
		return err
	}
	if length < 0 {
		n := -int64(length)
		body := make([]byte, n)
		if err := w.ReadExact(body); err != nil {
			return err
		}
		return h.ClientCutTextExtended(body)
	}
	body := make([]byte, length)
	if err := w.ReadExact(body); err != nil {
		return err
	}
	return h.ClientCutText(string(body))
}

func dispatchEnableContinuousUpdates(w *wire.Wire, h Handlers) error {
	enable, err := w.ReadU8()
	if err != nil {
		return err
	}
	x, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	y, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	ww, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	hh, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	return h.EnableContinuousUpdates(enable != 0, region.New(int16(x), int16(y), ww, hh))
}

func dispatchSetDesktopSize(w *wire.Wire, h Handlers) error {
	if err := w.Skip(1); err != nil {
		return err
	}
	width, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	height, err := w.ReadU16BE()
	if err != nil {
		return err
	}
	numScreens, err := w.ReadU8()
	if err != nil {
		return err
	}
	if err := w.Skip(1); err != nil {
		return err
	}
	_ = width
	_ = height
	screens := make([]ScreenInfo, numScreens)
	for i := range screens {
		id, err := w.ReadU32BE()
		if err != nil {
			return err
		}
		x, err := w.ReadU16BE()
		if err != nil {
			return err
		}
		y, err := w.ReadU16BE()
		if err != nil {
			return err
		}
		sw, err := w.ReadU16BE()
		if err != nil {
			return err
		}
		sh, err := w.ReadU16BE()
		if err != nil {
			return err
		}
		flags, err := w.ReadU32BE()
		if err != nil {
			return err
		}
		screens[i] = ScreenInfo{ID: id, X: x, Y: y, W: sw, H: sh, Flags: flags}
	}
	return h.SetDesktopSize(screens)
}

func dispatchLTSM(w *wire.Wire, h Handlers) error {
	// Frame: u8 channel, u16 flags, u32 length, bytes[length].
	// The dispatcher reads only the length field, to know how many bytes to
	// take, and hands the whole frame on as one body; channelmux decodes
	// channel/flags/length from it.
	header := make([]byte, 7)
	if err := w.ReadExact(header); err != nil {
		return err
	}
	length := uint32(header[3])<<24 | uint32(header[4])<<16 | uint32(header[5])<<8 | uint32(header[6])
	body := make([]byte, 7+int(length))
	copy(body, header)
	if err := w.ReadExact(body[7:]); err != nil {
		return err
	}
	return h.ChannelData(body)
}
