// Package framebuffer implements an owned pixel buffer: a region of pixels
// plus a PixelFormat and row pitch, with the region-clipped operations
// (fill, blit, palette/weight maps, RLE) the codec package builds on. A raw
// byte buffer rather than an image.Image, because the subrect
// (RRE/CoRRE) and tile (Hextile/TRLE/ZRLE) encoders need direct pixel
// access rather than Go's image.Image/color.Color interfaces.
package framebuffer

import (
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
)

// FrameBuffer is an owned pixel buffer over a Region.
type FrameBuffer struct {
	Format pixelformat.Format
	Reg    region.Region
	Pitch  int // row stride in bytes; Pitch >= W*bpp/8
	Pixels []byte
}

// New allocates a zeroed FrameBuffer covering reg in the given format, with
// pitch equal to the tight row size (no padding).
func New(reg region.Region, format pixelformat.Format) *FrameBuffer {
	bpp := format.BytesPerPixel()
	pitch := int(reg.W) * bpp
	return &FrameBuffer{
		Format: format,
		Reg:    reg,
		Pitch:  pitch,
		Pixels: make([]byte, pitch*int(reg.H)),
	}
}

// NewPadded allocates a FrameBuffer with an explicit pitch, which must be at
// least W*bpp/8.
func NewPadded(reg region.Region, format pixelformat.Format, pitch int) *FrameBuffer {
	min := int(reg.W) * format.BytesPerPixel()
	if pitch < min {
		pitch = min
	}
	return &FrameBuffer{
		Format: format,
		Reg:    reg,
		Pitch:  pitch,
		Pixels: make([]byte, pitch*int(reg.H)),
	}
}

func (f *FrameBuffer) offset(x, y int32) (int, error) {
	if !f.Reg.Contains(x, y) {
		return 0, ltsmerr.New(ltsmerr.Format, "framebuffer point out of region")
	}
	lx := int(x - int32(f.Reg.X))
	ly := int(y - int32(f.Reg.Y))
	return ly*f.Pitch + lx*f.Format.BytesPerPixel(), nil
}

// Pixel reads the pixel word at the given absolute point. The point must
// lie inside f.Reg.
func (f *FrameBuffer) Pixel(x, y int32) (uint32, error) {
	off, err := f.offset(x, y)
	if err != nil {
		return 0, err
	}
	return readPixel(f.Pixels[off:], f.Format.BytesPerPixel()), nil
}

// SetPixel writes a pixel word at the given absolute point.
func (f *FrameBuffer) SetPixel(x, y int32, px uint32) error {
	off, err := f.offset(x, y)
	if err != nil {
		return err
	}
	writePixel(f.Pixels[off:], f.Format.BytesPerPixel(), px)
	return nil
}

func readPixel(buf []byte, bpp int) uint32 {
	switch bpp {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(buf[0]) | uint32(buf[1])<<8
	default: // 4
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	}
}

func writePixel(buf []byte, bpp int, px uint32) {
	switch bpp {
	case 1:
		buf[0] = byte(px)
	case 2:
		buf[0] = byte(px)
		buf[1] = byte(px >> 8)
	default: // 4
		buf[0] = byte(px)
		buf[1] = byte(px >> 8)
		buf[2] = byte(px >> 16)
		buf[3] = byte(px >> 24)
	}
}

// Fill sets every pixel in reg (clipped to f.Reg) to px.
func (f *FrameBuffer) Fill(reg region.Region, px uint32) error {
	clipped := reg.Clip(f.Reg)
	if clipped.Empty() {
		return nil
	}
	for y := int32(clipped.Y); y < clipped.Bottom(); y++ {
		for x := int32(clipped.X); x < clipped.Right(); x++ {
			if err := f.SetPixel(x, y, px); err != nil {
				return err
			}
		}
	}
	return nil
}

// Blit copies srcReg from src into this buffer at dstPoint (top-left),
// converting pixel format if src and f differ.
func (f *FrameBuffer) Blit(src *FrameBuffer, srcReg region.Region, dstPoint region.Point) error {
	clippedSrc := srcReg.Clip(src.Reg)
	sameFormat := src.Format == f.Format
	for y := int32(0); y < int32(clippedSrc.H); y++ {
		for x := int32(0); x < int32(clippedSrc.W); x++ {
			sx := int32(clippedSrc.X) + x
			sy := int32(clippedSrc.Y) + y
			px, err := src.Pixel(sx, sy)
			if err != nil {
				return err
			}
			if !sameFormat {
				px = pixelformat.Convert(px, src.Format, f.Format)
			}
			dx := int32(dstPoint.X) + x
			dy := int32(dstPoint.Y) + y
			if err := f.SetPixel(dx, dy, px); err != nil {
				return err
			}
		}
	}
	return nil
}

// PixelMapPalette returns the distinct pixel values present in reg.
func (f *FrameBuffer) PixelMapPalette(reg region.Region) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	clipped := reg.Clip(f.Reg)
	for y := int32(clipped.Y); y < clipped.Bottom(); y++ {
		for x := int32(clipped.X); x < clipped.Right(); x++ {
			px, _ := f.Pixel(x, y)
			out[px] = struct{}{}
		}
	}
	return out
}

// PixelMapWeight returns pixel -> occurrence count over reg.
func (f *FrameBuffer) PixelMapWeight(reg region.Region) map[uint32]int {
	out := make(map[uint32]int)
	clipped := reg.Clip(f.Reg)
	for y := int32(clipped.Y); y < clipped.Bottom(); y++ {
		for x := int32(clipped.X); x < clipped.Right(); x++ {
			px, _ := f.Pixel(x, y)
			out[px]++
		}
	}
	return out
}

// MaxWeightPixel is the mode pixel over reg, used as the RRE/Hextile
// background. Ties break on the numerically smaller pixel
// value, for determinism.
func (f *FrameBuffer) MaxWeightPixel(reg region.Region) uint32 {
	weights := f.PixelMapWeight(reg)
	var best uint32
	bestCount := -1
	for px, count := range weights {
		if count > bestCount || (count == bestCount && px < best) {
			best, bestCount = px, count
		}
	}
	return best
}

// AllOfPixel reports whether every pixel in reg equals px. The RRE/CoRRE
// encoders do not call it: they build subrects by growing runs greedily
// from the mode-pixel background, not by quad-subdivision.
func (f *FrameBuffer) AllOfPixel(px uint32, reg region.Region) bool {
	clipped := reg.Clip(f.Reg)
	if clipped.Empty() {
		return true
	}
	for y := int32(clipped.Y); y < clipped.Bottom(); y++ {
		for x := int32(clipped.X); x < clipped.Right(); x++ {
			got, _ := f.Pixel(x, y)
			if got != px {
				return false
			}
		}
	}
	return true
}

// Run is one (pixel, runLength) pair from a row-major RLE scan.
type Run struct {
	Pixel  uint32
	Length uint32
}

// ToRLE performs a row-major scan of reg with run collapse; runs of up to
// 2^32-1 pixels are supported. Runs never cross row
// boundaries, matching TRLE/ZRLE's per-row-independent tile semantics.
func (f *FrameBuffer) ToRLE(reg region.Region) []Run {
	clipped := reg.Clip(f.Reg)
	if clipped.Empty() {
		return nil
	}
	var runs []Run
	for y := int32(clipped.Y); y < clipped.Bottom(); y++ {
		var cur Run
		haveCur := false
		for x := int32(clipped.X); x < clipped.Right(); x++ {
			px, _ := f.Pixel(x, y)
			if haveCur && px == cur.Pixel && cur.Length < 0xFFFFFFFF {
				cur.Length++
				continue
			}
			if haveCur {
				runs = append(runs, cur)
			}
			cur = Run{Pixel: px, Length: 1}
			haveCur = true
		}
		if haveCur {
			runs = append(runs, cur)
		}
	}
	return runs
}

// FromRLE reconstructs a FrameBuffer of format over reg from a sequence of
// runs produced by ToRLE on a region of the same width. The round-trip
// tests use it; the TRLE/ZRLE tile decoders read plain RLE with their own
// readPlainRLE instead.
func FromRLE(reg region.Region, format pixelformat.Format, runs []Run) (*FrameBuffer, error) {
	fb := New(reg, format)
	x, y := int32(reg.X), int32(reg.Y)
	for _, run := range runs {
		for i := uint32(0); i < run.Length; i++ {
			if err := fb.SetPixel(x, y, run.Pixel); err != nil {
				return nil, err
			}
			x++
			if x >= reg.Right() {
				x = int32(reg.X)
				y++
			}
		}
	}
	return fb, nil
}
