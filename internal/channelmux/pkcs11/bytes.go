package pkcs11

import (
	"encoding/binary"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// byteBuf/byteReader are the little-endian field-at-a-time (de)serializers
// the pkcs11 bridge's compound Init/GetSlots/SignData replies use, since
// none of those shapes are fixed-width structs the way the FUSE bridge's
// Stat record is.
type byteBuf struct{ data []byte }

func (b *byteBuf) raw(p []byte)  { b.data = append(b.data, p...) }
func (b *byteBuf) putU8(v uint8) { b.data = append(b.data, v) }
func (b *byteBuf) putU16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}
func (b *byteBuf) putU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}
func (b *byteBuf) putU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}
func (b *byteBuf) putString(s string) {
	b.putU16(uint16(len(s)))
	b.raw([]byte(s))
}
func (b *byteBuf) bytes() []byte { return b.data }

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) need(n int) error {
	if len(r.buf)-r.pos < n {
		return ltsmerr.New(ltsmerr.Format, "pkcs11 field truncated")
	}
	return nil
}

func (r *byteReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *byteReader) string() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.raw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
