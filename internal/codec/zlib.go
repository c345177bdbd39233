package codec

import (
	"io"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// ZlibCodec zlib-compresses a Raw rectangle as a single chunk (RFC 6143
// §7.7 "Tight"-family predecessor): no tiling, just the same persistent
// zlib stream idea as ZRLE applied to whole-rectangle raw bytes.
type ZlibCodec struct {
	enc *zlibEncodeStream
	dec *zlibDecodeStream
}

func NewZlib() *ZlibCodec {
	return &ZlibCodec{enc: newZlibEncodeStream(), dec: newZlibDecodeStream()}
}

func (c *ZlibCodec) Type() ID { return Zlib }
func (c *ZlibCodec) Reset()   {}

// SetCompressionLevel applies a client-requested zlib level; effective only
// before the first rectangle has been compressed.
func (c *ZlibCodec) SetCompressionLevel(level int) { c.enc.setLevel(level) }

func (c *ZlibCodec) ResetSession() {
	c.enc = newZlibEncodeStream()
	c.dec = newZlibDecodeStream()
}

func (c *ZlibCodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	bpp := clientFormat.BytesPerPixel()
	plain := make([]byte, 0, bpp*fb.Reg.Area())
	pxBuf := make([]byte, bpp)
	for y := int32(fb.Reg.Y); y < fb.Reg.Bottom(); y++ {
		for x := int32(fb.Reg.X); x < fb.Reg.Right(); x++ {
			px, err := fb.Pixel(x, y)
			if err != nil {
				return err
			}
			if fb.Format != clientFormat {
				px = pixelformat.Convert(px, fb.Format, clientFormat)
			}
			putPixel(pxBuf, bpp, px, clientFormat.ByteOrder())
			plain = append(plain, pxBuf...)
		}
	}
	framed, err := c.enc.compress(plain)
	if err != nil {
		return err
	}
	if err := w.WriteU32BE(uint32(len(framed))); err != nil {
		return err
	}
	return w.WriteBytes(framed)
}

func (c *ZlibCodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	n, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	framed := make([]byte, n)
	if err := r.ReadExact(framed); err != nil {
		return nil, err
	}
	stream, err := c.dec.feedBytes(framed)
	if err != nil {
		return nil, err
	}

	fb := framebuffer.New(reg, clientFormat)
	bpp := clientFormat.BytesPerPixel()
	pxBuf := make([]byte, bpp)
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		for x := int32(reg.X); x < reg.Right(); x++ {
			if _, err := io.ReadFull(stream, pxBuf); err != nil {
				return nil, err
			}
			px := getPixel(pxBuf, bpp, clientFormat.ByteOrder())
			if err := fb.SetPixel(x, y, px); err != nil {
				return nil, err
			}
		}
	}
	return fb, nil
}
