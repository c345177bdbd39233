package codec

import (
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// CoRRECodec is RRE restricted to a single tile no larger than 255x255, with
// subrectangle position/size as u8 instead of u16 (RFC 6143 §7.7.3). The
// server must split any larger rectangle into <=255x255 tiles before using
// this codec; Encode enforces that precondition.
type CoRRECodec struct{}

func NewCoRRE() *CoRRECodec { return &CoRRECodec{} }

func (c *CoRRECodec) Type() ID { return CoRRE }
func (c *CoRRECodec) Reset()   {}

func (c *CoRRECodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	if fb.Reg.W > 255 || fb.Reg.H > 255 {
		return &tileTooLargeError{Codec: "corre", W: fb.Reg.W, H: fb.Reg.H}
	}
	bg, rects := subdivide(fb, fb.Reg)
	if fb.Format != clientFormat {
		bg = pixelformat.Convert(bg, fb.Format, clientFormat)
	}
	if err := w.WriteU32BE(uint32(len(rects))); err != nil {
		return err
	}
	bpp := clientFormat.BytesPerPixel()
	pxBuf := make([]byte, bpp)
	putPixel(pxBuf, bpp, bg, clientFormat.ByteOrder())
	if err := w.WriteBytes(pxBuf); err != nil {
		return err
	}
	for _, sr := range rects {
		px := sr.Pixel
		if fb.Format != clientFormat {
			px = pixelformat.Convert(px, fb.Format, clientFormat)
		}
		putPixel(pxBuf, bpp, px, clientFormat.ByteOrder())
		if err := w.WriteBytes(pxBuf); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(sr.X)); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(sr.Y)); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(sr.W)); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(sr.H)); err != nil {
			return err
		}
	}
	return nil
}

func (c *CoRRECodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	n, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	bpp := clientFormat.BytesPerPixel()
	pxBuf := make([]byte, bpp)
	if err := r.ReadExact(pxBuf); err != nil {
		return nil, err
	}
	bg := getPixel(pxBuf, bpp, clientFormat.ByteOrder())
	fb := framebuffer.New(reg, clientFormat)
	if err := fb.Fill(reg, bg); err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		if err := r.ReadExact(pxBuf); err != nil {
			return nil, err
		}
		px := getPixel(pxBuf, bpp, clientFormat.ByteOrder())
		x, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		y, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		sw, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		sh, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		sub := region.New(reg.X+int16(x), reg.Y+int16(y), uint16(sw), uint16(sh))
		if err := fb.Fill(sub, px); err != nil {
			return nil, err
		}
	}
	return fb, nil
}

type tileTooLargeError struct {
	Codec string
	W, H  uint16
}

func (e *tileTooLargeError) Error() string {
	return e.Codec + ": tile exceeds 255x255"
}
