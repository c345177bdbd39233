// Package extclipboard implements the Extended Clipboard sub-protocol:
// a capability-negotiated Caps/Request/Peek/Notify/Provide
// frame set carried inside a regular ClientCutText/ServerCutText message
// whose length field is negative. The surrounding
// negative-length framing is shared with internal/protocol's
// ClientCutTextExtended dispatch.
package extclipboard

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// Operation is the top-byte op code of the flags word.
type Operation uint32

const (
	OpCaps    Operation = 1 << 24
	OpRequest Operation = 1 << 25
	OpPeek    Operation = 1 << 26
	OpNotify  Operation = 1 << 27
	OpProvide Operation = 1 << 28

	opMask = 0xFF000000
)

// TypeMask is the low-16-bit bitmask over clipboard content types.
type TypeMask uint32

const (
	TypeText  TypeMask = 1 << 0
	TypeRTF   TypeMask = 1 << 1
	TypeHTML  TypeMask = 1 << 2
	TypeDIB   TypeMask = 1 << 3
	TypeFiles TypeMask = 1 << 4

	typeMaskBits = 0x0000FFFF
)

// orderedTypes lists the five types in the bit order Caps' max-size array
// and Provide's zlib stream iterate in.
var orderedTypes = []TypeMask{TypeText, TypeRTF, TypeHTML, TypeDIB, TypeFiles}

// Capabilities is the per-type maximum unsolicited size a Caps frame
// announces.
type Capabilities struct {
	MaxSize map[TypeMask]uint32
}

// Frame is one decoded Extended Clipboard frame.
type Frame struct {
	Op       Operation
	Types    TypeMask
	MaxSize  map[TypeMask]uint32 // populated for OpCaps
	Payloads map[TypeMask][]byte // populated for OpProvide, decompressed
}

// EncodeCaps builds the body of a Caps frame: flags word (OpCaps | typeMask)
// followed by one u32 max size per type present in caps, in bit order.
func EncodeCaps(caps Capabilities) []byte {
	var types TypeMask
	for t := range caps.MaxSize {
		types |= t
	}
	buf := &bytes.Buffer{}
	writeU32(buf, uint32(OpCaps)|uint32(types))
	for _, t := range orderedTypes {
		if types&t != 0 {
			writeU32(buf, caps.MaxSize[t])
		}
	}
	return buf.Bytes()
}

// EncodeRequest builds the body of a Request(typeMask) frame.
func EncodeRequest(types TypeMask) []byte {
	buf := &bytes.Buffer{}
	writeU32(buf, uint32(OpRequest)|uint32(types))
	return buf.Bytes()
}

// EncodePeek builds the body of a Peek frame.
func EncodePeek() []byte {
	buf := &bytes.Buffer{}
	writeU32(buf, uint32(OpPeek))
	return buf.Bytes()
}

// EncodeNotify builds the body of a Notify(typeMask) frame advertising the
// types currently available.
func EncodeNotify(types TypeMask) []byte {
	buf := &bytes.Buffer{}
	writeU32(buf, uint32(OpNotify)|uint32(types))
	return buf.Bytes()
}

// EncodeProvide builds the body of a Provide(typeMask, zlibStream) frame:
// the flags word, then a single zlib stream containing one (u32 size,
// bytes) pair per type in typeMask, in bit order.
func EncodeProvide(payloads map[TypeMask][]byte) ([]byte, error) {
	var types TypeMask
	for t := range payloads {
		types |= t
	}
	inner := &bytes.Buffer{}
	for _, t := range orderedTypes {
		if types&t == 0 {
			continue
		}
		data := payloads[t]
		writeU32(inner, uint32(len(data)))
		inner.Write(data)
	}

	out := &bytes.Buffer{}
	writeU32(out, uint32(OpProvide)|uint32(types))
	zw := zlib.NewWriter(out)
	if _, err := zw.Write(inner.Bytes()); err != nil {
		return nil, ltsmerr.Wrap(ltsmerr.Format, "extclipboard provide zlib", err)
	}
	if err := zw.Close(); err != nil {
		return nil, ltsmerr.Wrap(ltsmerr.Format, "extclipboard provide zlib close", err)
	}
	return out.Bytes(), nil
}

// Decode parses a frame body (the bytes following the negative length
// field in ClientCutText/ServerCutText).
func Decode(body []byte) (Frame, error) {
	if len(body) < 4 {
		return Frame{}, ltsmerr.New(ltsmerr.Format, "extclipboard frame too short")
	}
	flags := binary.BigEndian.Uint32(body[0:4])
	op := Operation(flags & opMask)
	types := TypeMask(flags & typeMaskBits)
	rest := body[4:]

	f := Frame{Op: op, Types: types}
	switch op {
	case OpCaps:
		f.MaxSize = make(map[TypeMask]uint32)
		for _, t := range orderedTypes {
			if types&t == 0 {
				continue
			}
			if len(rest) < 4 {
				return Frame{}, ltsmerr.New(ltsmerr.Format, "extclipboard caps truncated")
			}
			f.MaxSize[t] = binary.BigEndian.Uint32(rest[0:4])
			rest = rest[4:]
		}
	case OpProvide:
		zr, err := zlib.NewReader(bytes.NewReader(rest))
		if err != nil {
			return Frame{}, ltsmerr.Wrap(ltsmerr.Format, "extclipboard provide zlib header", err)
		}
		plain, err := io.ReadAll(zr)
		if err != nil {
			return Frame{}, ltsmerr.Wrap(ltsmerr.Format, "extclipboard provide zlib read", err)
		}
		f.Payloads = make(map[TypeMask][]byte)
		for _, t := range orderedTypes {
			if types&t == 0 {
				continue
			}
			if len(plain) < 4 {
				return Frame{}, ltsmerr.New(ltsmerr.Format, "extclipboard provide payload truncated")
			}
			size := binary.BigEndian.Uint32(plain[0:4])
			plain = plain[4:]
			if uint32(len(plain)) < size {
				return Frame{}, ltsmerr.New(ltsmerr.Format, "extclipboard provide payload short")
			}
			f.Payloads[t] = plain[:size]
			plain = plain[size:]
		}
	case OpRequest, OpPeek, OpNotify:
		// type mask only, no further body.
	default:
		return Frame{}, ltsmerr.New(ltsmerr.Format, "extclipboard unknown operation")
	}
	return f, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// WriteExtendedCutText writes a negative-length ClientCutText/ServerCutText
// frame on w: the 3 pad bytes, i32 length = -len(body), then body. msgType
// selects the direction (protocol.MsgClientCutText or MsgServerCutText);
// passed as a raw byte to avoid an import cycle with internal/protocol.
func WriteExtendedCutText(w *wire.Wire, msgType uint8, body []byte) error {
	w.Lock()
	defer w.Unlock()
	if err := w.WriteU8(msgType); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte{0, 0, 0}); err != nil {
		return err
	}
	if err := w.WriteI32BE(-int32(len(body))); err != nil {
		return err
	}
	if err := w.WriteBytes(body); err != nil {
		return err
	}
	return w.Flush()
}
