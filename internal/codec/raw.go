package codec

import (
	"encoding/binary"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// RawCodec is the mandatory fallback encoding: pixels in row-major order,
// no compression (RFC 6143 §7.7.1).
type RawCodec struct{}

func NewRaw() *RawCodec { return &RawCodec{} }

func (c *RawCodec) Type() ID { return Raw }
func (c *RawCodec) Reset()   {}

func (c *RawCodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	bpp := clientFormat.BytesPerPixel()
	row := make([]byte, bpp*int(fb.Reg.W))
	for y := int32(fb.Reg.Y); y < fb.Reg.Bottom(); y++ {
		for i, x := 0, int32(fb.Reg.X); x < fb.Reg.Right(); i, x = i+1, x+1 {
			px, err := fb.Pixel(x, y)
			if err != nil {
				return err
			}
			if fb.Format != clientFormat {
				px = pixelformat.Convert(px, fb.Format, clientFormat)
			}
			putPixel(row[i*bpp:], bpp, px, clientFormat.ByteOrder())
		}
		if err := w.WriteBytes(row); err != nil {
			return err
		}
	}
	return nil
}

func (c *RawCodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	fb := framebuffer.New(reg, clientFormat)
	bpp := clientFormat.BytesPerPixel()
	row := make([]byte, bpp*int(reg.W))
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		if err := r.ReadExact(row); err != nil {
			return nil, err
		}
		for i, x := 0, int32(reg.X); x < reg.Right(); i, x = i+1, x+1 {
			px := getPixel(row[i*bpp:], bpp, clientFormat.ByteOrder())
			if err := fb.SetPixel(x, y, px); err != nil {
				return nil, err
			}
		}
	}
	return fb, nil
}

// putPixel and getPixel lay out one pixel word according to the client's
// declared byte order, unlike framebuffer's internal
// storage which is always little-endian.
func putPixel(buf []byte, bpp int, px uint32, order binary.ByteOrder) {
	switch bpp {
	case 1:
		buf[0] = byte(px)
	case 2:
		order.PutUint16(buf, uint16(px))
	default:
		order.PutUint32(buf, px)
	}
}

func getPixel(buf []byte, bpp int, order binary.ByteOrder) uint32 {
	switch bpp {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(order.Uint16(buf))
	default:
		return order.Uint32(buf)
	}
}
