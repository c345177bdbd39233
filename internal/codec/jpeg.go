package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// JPEGCodec is the LTSM "TJPG" whole-rectangle lossy encoding: a
// standalone baseline JPEG payload, no Tight-style filter chain. Lossy
// codecs trade bit-exactness for bandwidth, so a decoded rectangle is
// close to, not bit-identical with, the one that was encoded.
type JPEGCodec struct {
	Quality int
}

func NewJPEG(quality int) *JPEGCodec {
	if quality <= 0 {
		quality = 80
	}
	return &JPEGCodec{Quality: quality}
}

func (c *JPEGCodec) Type() ID { return JPEG }
func (c *JPEGCodec) Reset()   {}

func (c *JPEGCodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	img := image.NewRGBA(image.Rect(0, 0, int(fb.Reg.W), int(fb.Reg.H)))
	for y := int32(fb.Reg.Y); y < fb.Reg.Bottom(); y++ {
		for x := int32(fb.Reg.X); x < fb.Reg.Right(); x++ {
			px, err := fb.Pixel(x, y)
			if err != nil {
				return err
			}
			r, g, b, _ := fb.Format.Unpack(px)
			img.SetRGBA(int(x-int32(fb.Reg.X)), int(y-int32(fb.Reg.Y)), color.RGBA{
				R: scale8(r, fb.Format.RedMax),
				G: scale8(g, fb.Format.GreenMax),
				B: scale8(b, fb.Format.BlueMax),
				A: 0xFF,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.Quality}); err != nil {
		return ltsmerr.Wrap(ltsmerr.CodecFormat, "jpeg encode", err)
	}
	if err := w.WriteU32BE(uint32(buf.Len())); err != nil {
		return err
	}
	return w.WriteBytes(buf.Bytes())
}

func (c *JPEGCodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	n, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := r.ReadExact(buf); err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, ltsmerr.Wrap(ltsmerr.CodecFormat, "jpeg decode", err)
	}
	fb := framebuffer.New(reg, clientFormat)
	bounds := img.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			rr, gg, bb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			px := clientFormat.Pack(uint16(rr>>8)*clientFormat.RedMax/0xFF, uint16(gg>>8)*clientFormat.GreenMax/0xFF, uint16(bb>>8)*clientFormat.BlueMax/0xFF, 0)
			if err := fb.SetPixel(int32(reg.X)+int32(x), int32(reg.Y)+int32(y), px); err != nil {
				return nil, err
			}
		}
	}
	return fb, nil
}

// scale8 rescales a channel value with the given max to an 8-bit sample.
func scale8(c, max uint16) uint8 {
	if max == 0 {
		return 0
	}
	return uint8((uint32(c)*255 + uint32(max)/2) / uint32(max))
}
