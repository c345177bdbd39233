// Package wire provides endian-aware byte I/O over an abstract transport,
// a bufio.Reader/bufio.Writer pair wrapped around whatever stream the
// security negotiation produced.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// SecureStream is the transport this module reads and writes through. TLS/
// VeNCrypt/GSSAPI tunneling is an external collaborator: whatever produces a
// SecureStream has already done that negotiation.
type SecureStream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Wire is endian-aware I/O over a SecureStream, with a send-mutex so the
// frame producer, the channel mux, and clipboard/bell writes never
// interleave bytes on the wire.
type Wire struct {
	stream SecureStream
	br     *bufio.Reader
	bw     *bufio.Writer

	sendMu sync.Mutex
}

// New wraps a SecureStream for endian-aware I/O.
func New(s SecureStream) *Wire {
	return &Wire{
		stream: s,
		br:     bufio.NewReader(s),
		bw:     bufio.NewWriter(s),
	}
}

// Lock acquires the send-mutex; callers that need to emit several writes as
// one atomic unit (a FramebufferUpdate's rectangle list, say) should hold it
// across the whole sequence and call flush once under lock.
func (w *Wire) Lock()   { w.sendMu.Lock() }
func (w *Wire) Unlock() { w.sendMu.Unlock() }

// Close closes the underlying transport.
func (w *Wire) Close() error { return w.stream.Close() }

// Stream exposes the underlying SecureStream, for callers (VeNCrypt's TLS
// upgrade) that need to type-assert it to a richer transport interface.
func (w *Wire) Stream() SecureStream { return w.stream }

func wrapRead(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ltsmerr.Wrap(ltsmerr.WireClosed, op, err)
	}
	return ltsmerr.Wrap(ltsmerr.WireIO, op, err)
}

func wrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	return ltsmerr.Wrap(ltsmerr.WireIO, op, err)
}

// ReadU8 reads a single byte.
func (w *Wire) ReadU8() (uint8, error) {
	b, err := w.br.ReadByte()
	if err != nil {
		return 0, wrapRead("read u8", err)
	}
	return b, nil
}

// PeekU8 returns the next byte without consuming it.
func (w *Wire) PeekU8() (uint8, error) {
	b, err := w.br.Peek(1)
	if err != nil {
		return 0, wrapRead("peek u8", err)
	}
	return b[0], nil
}

// Skip discards n bytes (used for RFB padding fields).
func (w *Wire) Skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := w.ReadU8(); err != nil {
			return err
		}
	}
	return nil
}

// ReadExact reads exactly len(buf) bytes into buf.
func (w *Wire) ReadExact(buf []byte) error {
	_, err := io.ReadFull(w.br, buf)
	return wrapRead("read exact", err)
}

// ReadU16BE reads a big-endian uint16.
func (w *Wire) ReadU16BE() (uint16, error) {
	var buf [2]byte
	if err := w.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// ReadU32BE reads a big-endian uint32.
func (w *Wire) ReadU32BE() (uint32, error) {
	var buf [4]byte
	if err := w.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadI32BE reads a big-endian int32 (used for negative/pseudo encoding ids
// and the signed ClientCutText length field).
func (w *Wire) ReadI32BE() (int32, error) {
	v, err := w.ReadU32BE()
	return int32(v), err
}

// ReadI16BE reads a big-endian int16 (rectangle x/y are signed).
func (w *Wire) ReadI16BE() (int16, error) {
	v, err := w.ReadU16BE()
	return int16(v), err
}

// ReadU16 reads a uint16 in the given byte order (used for pixel payloads,
// whose order follows the client's declared bigEndian flag).
func (w *Wire) ReadU16(order binary.ByteOrder) (uint16, error) {
	var buf [2]byte
	if err := w.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return order.Uint16(buf[:]), nil
}

// ReadU32 reads a uint32 in the given byte order.
func (w *Wire) ReadU32(order binary.ByteOrder) (uint32, error) {
	var buf [4]byte
	if err := w.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return order.Uint32(buf[:]), nil
}

// ReadString reads a u32-length-prefixed UTF-8 string.
func (w *Wire) ReadString() (string, error) {
	n, err := w.ReadU32BE()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := w.ReadExact(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteU8 writes a single byte. It never takes the send-mutex: a caller
// whose write must not interleave with another writer's holds Lock itself.
func (w *Wire) WriteU8(v uint8) error {
	return wrapWrite("write u8", w.bw.WriteByte(v))
}

// WriteU16BE writes a big-endian uint16.
func (w *Wire) WriteU16BE(v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.bw.Write(buf[:])
	return wrapWrite("write u16be", err)
}

// WriteU32BE writes a big-endian uint32.
func (w *Wire) WriteU32BE(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.bw.Write(buf[:])
	return wrapWrite("write u32be", err)
}

// WriteI32BE writes a big-endian int32.
func (w *Wire) WriteI32BE(v int32) error { return w.WriteU32BE(uint32(v)) }

// WriteI16BE writes a big-endian int16.
func (w *Wire) WriteI16BE(v int16) error { return w.WriteU16BE(uint16(v)) }

// WriteU16 writes a uint16 in the given byte order.
func (w *Wire) WriteU16(order binary.ByteOrder, v uint16) error {
	var buf [2]byte
	order.PutUint16(buf[:], v)
	_, err := w.bw.Write(buf[:])
	return wrapWrite("write u16", err)
}

// WriteU32 writes a uint32 in the given byte order.
func (w *Wire) WriteU32(order binary.ByteOrder, v uint32) error {
	var buf [4]byte
	order.PutUint32(buf[:], v)
	_, err := w.bw.Write(buf[:])
	return wrapWrite("write u32", err)
}

// WriteBytes writes a raw byte slice.
func (w *Wire) WriteBytes(b []byte) error {
	_, err := w.bw.Write(b)
	return wrapWrite("write bytes", err)
}

// WriteString writes a u32-length-prefixed UTF-8 string.
func (w *Wire) WriteString(s string) error {
	if err := w.WriteU32BE(uint32(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

// Flush flushes any buffered writes to the transport.
func (w *Wire) Flush() error {
	return wrapWrite("flush", w.bw.Flush())
}

// HasBuffered reports whether the reader already holds unconsumed bytes.
func (w *Wire) HasBuffered() bool {
	return w.br.Buffered() > 0
}

// Reader exposes the underlying buffered reader for callers (e.g. a zlib
// decompressor) that need an io.Reader bounded to a known length.
func (w *Wire) Reader() io.Reader { return w.br }

// Writer exposes the underlying buffered writer for callers (e.g. a zlib
// compressor) that need a raw io.Writer sink; the caller is responsible for
// flushing the compressor before relying on Flush to reach the transport.
func (w *Wire) Writer() io.Writer { return w.bw }
