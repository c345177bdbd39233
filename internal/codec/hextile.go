package codec

import (
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// Hextile subencoding mask bits, RFC 6143 §7.7.4.
const (
	hextileRaw              = 1 << 0
	hextileBackgroundSpec   = 1 << 1
	hextileForegroundSpec   = 1 << 2
	hextileAnySubrects      = 1 << 3
	hextileSubrectsColoured = 1 << 4
)

// HextileCodec splits the rectangle into 16x16 tiles, each independently
// encoded raw or as background+subrects, carrying background/foreground
// pixel state forward between tiles per RFC 6143 §7.7.4. The 16x16 tile
// walk itself follows internal/region's DivideBlocks.
type HextileCodec struct {
	haveBG, haveFG bool
	lastBG, lastFG uint32
}

func NewHextile() *HextileCodec { return &HextileCodec{} }

func (c *HextileCodec) Type() ID { return Hextile }

func (c *HextileCodec) Reset() {
	c.haveBG, c.haveFG = false, false
}

func (c *HextileCodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	bpp := clientFormat.BytesPerPixel()
	pxBuf := make([]byte, bpp)
	for _, tile := range fb.Reg.DivideBlocks(16) {
		bg, rects := subdivide(fb, tile)
		if fb.Format != clientFormat {
			bg = pixelformat.Convert(bg, fb.Format, clientFormat)
		}

		coloured := subrectsHaveMixedColours(rects)
		var mask byte
		sendRaw := len(rects) > maxHextileSubrects
		if sendRaw {
			mask = hextileRaw
		} else {
			if !c.haveBG || c.lastBG != bg {
				mask |= hextileBackgroundSpec
			}
			if len(rects) > 0 {
				mask |= hextileAnySubrects
				if coloured {
					mask |= hextileSubrectsColoured
				} else if !c.haveFG || c.lastFG != firstRectPixel(rects, fb, clientFormat) {
					mask |= hextileForegroundSpec
				}
			}
		}
		if err := w.WriteU8(mask); err != nil {
			return err
		}

		if sendRaw {
			sub := framebuffer.New(region.New(0, 0, tile.W, tile.H), clientFormat)
			if err := sub.Blit(fb, tile, region.Point{}); err != nil {
				return err
			}
			if err := (&RawCodec{}).Encode(w, sub, clientFormat); err != nil {
				return err
			}
			c.haveBG, c.haveFG = false, false
			continue
		}

		if mask&hextileBackgroundSpec != 0 {
			putPixel(pxBuf, bpp, bg, clientFormat.ByteOrder())
			if err := w.WriteBytes(pxBuf); err != nil {
				return err
			}
			c.haveBG, c.lastBG = true, bg
		}
		if len(rects) == 0 {
			continue
		}
		if mask&hextileForegroundSpec != 0 {
			fg := firstRectPixel(rects, fb, clientFormat)
			putPixel(pxBuf, bpp, fg, clientFormat.ByteOrder())
			if err := w.WriteBytes(pxBuf); err != nil {
				return err
			}
			c.haveFG, c.lastFG = true, fg
		}
		if err := w.WriteU8(uint8(len(rects))); err != nil {
			return err
		}
		for _, sr := range rects {
			if coloured {
				px := sr.Pixel
				if fb.Format != clientFormat {
					px = pixelformat.Convert(px, fb.Format, clientFormat)
				}
				putPixel(pxBuf, bpp, px, clientFormat.ByteOrder())
				if err := w.WriteBytes(pxBuf); err != nil {
					return err
				}
			}
			if err := w.WriteU8(uint8(sr.X<<4 | sr.Y)); err != nil {
				return err
			}
			if err := w.WriteU8(uint8((sr.W-1)<<4 | (sr.H - 1))); err != nil {
				return err
			}
		}
	}
	return nil
}

const maxHextileSubrects = 255

func subrectsHaveMixedColours(rects []subRect) bool {
	if len(rects) == 0 {
		return false
	}
	first := rects[0].Pixel
	for _, r := range rects[1:] {
		if r.Pixel != first {
			return true
		}
	}
	return false
}

func firstRectPixel(rects []subRect, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) uint32 {
	px := rects[0].Pixel
	if fb.Format != clientFormat {
		px = pixelformat.Convert(px, fb.Format, clientFormat)
	}
	return px
}

func (c *HextileCodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	fb := framebuffer.New(reg, clientFormat)
	bpp := clientFormat.BytesPerPixel()
	pxBuf := make([]byte, bpp)

	for _, tile := range reg.DivideBlocks(16) {
		mask, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if mask&hextileRaw != 0 {
			sub, err := (&RawCodec{}).Decode(r, region.New(0, 0, tile.W, tile.H), clientFormat)
			if err != nil {
				return nil, err
			}
			if err := fb.Blit(sub, sub.Reg, region.Point{X: uint16(tile.X - reg.X), Y: uint16(tile.Y - reg.Y)}); err != nil {
				return nil, err
			}
			c.haveBG, c.haveFG = false, false
			continue
		}
		if mask&hextileBackgroundSpec != 0 {
			if err := r.ReadExact(pxBuf); err != nil {
				return nil, err
			}
			c.lastBG = getPixel(pxBuf, bpp, clientFormat.ByteOrder())
			c.haveBG = true
		}
		if !c.haveBG {
			return nil, errHextileNoBackground
		}
		if err := fb.Fill(tile, c.lastBG); err != nil {
			return nil, err
		}
		if mask&hextileForegroundSpec != 0 {
			if err := r.ReadExact(pxBuf); err != nil {
				return nil, err
			}
			c.lastFG = getPixel(pxBuf, bpp, clientFormat.ByteOrder())
			c.haveFG = true
		}
		if mask&hextileAnySubrects == 0 {
			continue
		}
		n, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		coloured := mask&hextileSubrectsColoured != 0
		for i := uint8(0); i < n; i++ {
			px := c.lastFG
			if coloured {
				if err := r.ReadExact(pxBuf); err != nil {
					return nil, err
				}
				px = getPixel(pxBuf, bpp, clientFormat.ByteOrder())
			}
			xy, err := r.ReadU8()
			if err != nil {
				return nil, err
			}
			wh, err := r.ReadU8()
			if err != nil {
				return nil, err
			}
			x, y := xy>>4, xy&0x0F
			w, h := (wh>>4)+1, (wh&0x0F)+1
			sub := region.New(tile.X+int16(x), tile.Y+int16(y), uint16(w), uint16(h))
			if err := fb.Fill(sub, px); err != nil {
				return nil, err
			}
		}
	}
	return fb, nil
}

var errHextileNoBackground = errMissingHextileBackground{}

type errMissingHextileBackground struct{}

func (errMissingHextileBackground) Error() string {
	return "hextile: subrects tile received before any background pixel was established"
}
