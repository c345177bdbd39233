package codec

import (
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// RRECodec implements Rise-and-Run-length Encoding (RFC 6143 §7.7.2):
// a background pixel plus a flat list of foreground subrectangles.
type RRECodec struct{}

func NewRRE() *RRECodec { return &RRECodec{} }

func (c *RRECodec) Type() ID { return RRE }
func (c *RRECodec) Reset()   {}

type subRect struct {
	Pixel uint32
	X, Y  uint16
	W, H  uint16
}

// subdivide finds background color plus the foreground subrectangles for
// reg, using the framebuffer's mode-pixel helper.
func subdivide(fb *framebuffer.FrameBuffer, reg region.Region) (bg uint32, rects []subRect) {
	bg = fb.MaxWeightPixel(reg)
	visited := make(map[[2]int32]bool)
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		for x := int32(reg.X); x < reg.Right(); x++ {
			if visited[[2]int32{x, y}] {
				continue
			}
			px, _ := fb.Pixel(x, y)
			if px == bg {
				visited[[2]int32{x, y}] = true
				continue
			}
			// Grow a maximal run to the right, then down while every row in
			// the band matches the same run width and pixel.
			w := int32(1)
			for x+w < reg.Right() {
				npx, _ := fb.Pixel(x+w, y)
				if npx != px || visited[[2]int32{x + w, y}] {
					break
				}
				w++
			}
			h := int32(1)
			for y+h < reg.Bottom() {
				rowOK := true
				for i := int32(0); i < w; i++ {
					npx, _ := fb.Pixel(x+i, y+h)
					if npx != px || visited[[2]int32{x + i, y + h}] {
						rowOK = false
						break
					}
				}
				if !rowOK {
					break
				}
				h++
			}
			for j := int32(0); j < h; j++ {
				for i := int32(0); i < w; i++ {
					visited[[2]int32{x + i, y + j}] = true
				}
			}
			rects = append(rects, subRect{
				Pixel: px,
				X:     uint16(x - int32(reg.X)),
				Y:     uint16(y - int32(reg.Y)),
				W:     uint16(w),
				H:     uint16(h),
			})
		}
	}
	return bg, rects
}

func (c *RRECodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
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
		if err := w.WriteU16BE(sr.X); err != nil {
			return err
		}
		if err := w.WriteU16BE(sr.Y); err != nil {
			return err
		}
		if err := w.WriteU16BE(sr.W); err != nil {
			return err
		}
		if err := w.WriteU16BE(sr.H); err != nil {
			return err
		}
	}
	return nil
}

func (c *RRECodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
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
		x, err := r.ReadU16BE()
		if err != nil {
			return nil, err
		}
		y, err := r.ReadU16BE()
		if err != nil {
			return nil, err
		}
		sw, err := r.ReadU16BE()
		if err != nil {
			return nil, err
		}
		sh, err := r.ReadU16BE()
		if err != nil {
			return nil, err
		}
		sub := region.New(reg.X+int16(x), reg.Y+int16(y), sw, sh)
		if err := fb.Fill(sub, px); err != nil {
			return nil, err
		}
	}
	return fb, nil
}
