// Package channelmux implements the in-band LTSM side-channel
// multiplexer: a framed datagram layer carried inline with RFB
// messages, plus the system channel's JSON control commands and the
// FUSE/PKCS#11 bridge protocols layered on top of it. Every frame carries
// a `u8 channel, u16 flags, u32 length` header.
package channelmux

import (
	"encoding/binary"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// SystemChannel is the reserved channel id carrying JSON control
// commands.
const SystemChannel uint8 = 0

// Flag bits carried in a Frame's flags field. The system channel doesn't use
// these; non-zero channels may, e.g. to mark a frame as the final fragment
// of a larger message.
const (
	FlagNone  uint16 = 0
	FlagFinal uint16 = 1 << 0
)

// Frame is the wire unit both directions carry:
// u8 channel, u16 flags, u32 length, bytes[length].
type Frame struct {
	Channel uint8
	Flags   uint16
	Payload []byte
}

// Encode serializes fr to its wire form.
func (fr Frame) Encode() []byte {
	out := make([]byte, 7+len(fr.Payload))
	out[0] = fr.Channel
	binary.BigEndian.PutUint16(out[1:3], fr.Flags)
	binary.BigEndian.PutUint32(out[3:7], uint32(len(fr.Payload)))
	copy(out[7:], fr.Payload)
	return out
}

// DecodeFrame parses one frame from the front of buf, returning the frame,
// the number of bytes consumed, and ok=false if buf doesn't yet hold a
// complete frame; a partial trailing frame is buffered until more bytes
// arrive, never an error.
func DecodeFrame(buf []byte) (fr Frame, consumed int, ok bool) {
	if len(buf) < 7 {
		return Frame{}, 0, false
	}
	length := binary.BigEndian.Uint32(buf[3:7])
	total := 7 + int(length)
	if len(buf) < total {
		return Frame{}, 0, false
	}
	fr = Frame{
		Channel: buf[0],
		Flags:   binary.BigEndian.Uint16(buf[1:3]),
		Payload: append([]byte(nil), buf[7:total]...),
	}
	return fr, total, true
}

// Reassembler accumulates bytes arriving in arbitrary-sized chunks (as from
// a fragmented TCP stream) and yields complete Frames as they become
// available.
type Reassembler struct {
	buf []byte
}

// Feed appends data and returns every complete Frame now decodable,
// retaining any partial trailing bytes for the next Feed call.
func (r *Reassembler) Feed(data []byte) ([]Frame, error) {
	r.buf = append(r.buf, data...)
	var frames []Frame
	for {
		fr, n, ok := DecodeFrame(r.buf)
		if !ok {
			break
		}
		if n < 0 || n > len(r.buf) {
			return nil, ltsmerr.New(ltsmerr.ChannelError, "channel frame length overflow")
		}
		frames = append(frames, fr)
		r.buf = r.buf[n:]
	}
	return frames, nil
}
