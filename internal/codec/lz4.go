package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// LZ4Codec is the LTSM pseudo-encoding backing an LZ4-compressed
// whole-rectangle raw payload, built on github.com/pierrec/lz4/v4's
// streaming Writer/Reader, the
// same persistent-stream shape as ZlibCodec but swapping in LZ4 for
// workloads where zlib's ratio isn't worth its CPU cost.
type LZ4Codec struct {
	enc *lz4.Writer
	out *bytes.Buffer
	dec *lz4.Reader
	in  *feedReader
}

func NewLZ4() *LZ4Codec {
	out := &bytes.Buffer{}
	feed := &feedReader{}
	return &LZ4Codec{
		enc: lz4.NewWriter(out),
		out: out,
		dec: lz4.NewReader(feed),
		in:  feed,
	}
}

func (c *LZ4Codec) Type() ID { return LZ4 }
func (c *LZ4Codec) Reset()   {}

func (c *LZ4Codec) ResetSession() {
	c.out.Reset()
	c.enc = lz4.NewWriter(c.out)
	c.in = &feedReader{}
	c.dec = lz4.NewReader(c.in)
}

func (c *LZ4Codec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
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
	c.out.Reset()
	if _, err := c.enc.Write(plain); err != nil {
		return ltsmerr.Wrap(ltsmerr.CodecFormat, "lz4 compress", err)
	}
	if err := c.enc.Flush(); err != nil {
		return ltsmerr.Wrap(ltsmerr.CodecFormat, "lz4 flush", err)
	}
	framed := c.out.Bytes()
	if err := w.WriteU32BE(uint32(len(framed))); err != nil {
		return err
	}
	return w.WriteBytes(framed)
}

func (c *LZ4Codec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	n, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	framed := make([]byte, n)
	if err := r.ReadExact(framed); err != nil {
		return nil, err
	}
	c.in.data = framed

	fb := framebuffer.New(reg, clientFormat)
	bpp := clientFormat.BytesPerPixel()
	pxBuf := make([]byte, bpp)
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		for x := int32(reg.X); x < reg.Right(); x++ {
			if _, err := io.ReadFull(c.dec, pxBuf); err != nil {
				return nil, ltsmerr.Wrap(ltsmerr.CodecFormat, "lz4 decompress", err)
			}
			px := getPixel(pxBuf, bpp, clientFormat.ByteOrder())
			if err := fb.SetPixel(x, y, px); err != nil {
				return nil, err
			}
		}
	}
	return fb, nil
}
