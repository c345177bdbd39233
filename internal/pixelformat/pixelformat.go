// Package pixelformat implements the RFB PixelFormat record: channel
// masks/shifts and pack/unpack/convert, format-agnostic so the codecs can
// translate between the server's internal format and whatever the client
// negotiated.
package pixelformat

import (
	"encoding/binary"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// Format is an immutable pixel format value: channel maxes/shifts plus a
// big-endian flag. bpp is one of {8, 16, 32}.
type Format struct {
	BPP   uint8 // bits per pixel: 8, 16, or 32
	Depth uint8 // used bits, <= BPP

	BigEndian  bool
	TrueColour bool

	RedMax, GreenMax, BlueMax, AlphaMax         uint16
	RedShift, GreenShift, BlueShift, AlphaShift uint8
}

// Validate checks the invariant that max>0 and (max<<shift)
// fits in bpp, for every channel that's actually in use (AlphaMax==0 means
// "no alpha channel", which is always valid).
func (f Format) Validate() error {
	switch f.BPP {
	case 8, 16, 32:
	default:
		return ltsmerr.New(ltsmerr.PixelFormatUnsupported, "bpp must be 8, 16, or 32")
	}
	limit := uint64(1) << f.BPP
	for _, ch := range []struct {
		name  string
		max   uint16
		shift uint8
	}{
		{"red", f.RedMax, f.RedShift},
		{"green", f.GreenMax, f.GreenShift},
		{"blue", f.BlueMax, f.BlueShift},
	} {
		if ch.max == 0 {
			return ltsmerr.New(ltsmerr.PixelFormatUnsupported, ch.name+" max must be > 0")
		}
		if uint64(ch.max)<<ch.shift >= limit {
			return ltsmerr.New(ltsmerr.PixelFormatUnsupported, ch.name+" channel overflows bpp")
		}
	}
	if f.AlphaMax != 0 && uint64(f.AlphaMax)<<f.AlphaShift >= limit {
		return ltsmerr.New(ltsmerr.PixelFormatUnsupported, "alpha channel overflows bpp")
	}
	return nil
}

// ByteOrder returns the binary.ByteOrder this format's BigEndian flag
// implies, for pixel payload I/O (the client declares the byte order it
// wants to receive).
func (f Format) ByteOrder() binary.ByteOrder {
	if f.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// BytesPerPixel is BPP/8.
func (f Format) BytesPerPixel() int { return int(f.BPP) / 8 }

// Pack combines four channel values into a single pixel word, masking each
// value to its channel's bit width first.
func (f Format) Pack(r, g, b, a uint16) uint32 {
	var v uint32
	v |= (uint32(r) & uint32(f.RedMax)) << f.RedShift
	v |= (uint32(g) & uint32(f.GreenMax)) << f.GreenShift
	v |= (uint32(b) & uint32(f.BlueMax)) << f.BlueShift
	if f.AlphaMax != 0 {
		v |= (uint32(a) & uint32(f.AlphaMax)) << f.AlphaShift
	}
	return v
}

// Unpack extracts the four channel values (each scaled 0..max for this
// format) from a pixel word.
func (f Format) Unpack(px uint32) (r, g, b, a uint16) {
	r = uint16((px >> f.RedShift) & uint32(f.RedMax))
	g = uint16((px >> f.GreenShift) & uint32(f.GreenMax))
	b = uint16((px >> f.BlueShift) & uint32(f.BlueMax))
	if f.AlphaMax != 0 {
		a = uint16((px >> f.AlphaShift) & uint32(f.AlphaMax))
	}
	return
}

// rescale maps a channel value from one range onto another:
// c' = (c * dstMax + srcMax/2) / srcMax
func rescale(c, srcMax, dstMax uint16) uint16 {
	if srcMax == 0 {
		return 0
	}
	return uint16((uint32(c)*uint32(dstMax) + uint32(srcMax)/2) / uint32(srcMax))
}

// Convert rescales a pixel from src's channel ranges into dst's: extract
// by mask+shift on src, rescale each channel by integer multiply-divide,
// pack into dst.
func Convert(pixel uint32, src, dst Format) uint32 {
	r, g, b, a := src.Unpack(pixel)
	r = rescale(r, src.RedMax, dst.RedMax)
	g = rescale(g, src.GreenMax, dst.GreenMax)
	b = rescale(b, src.BlueMax, dst.BlueMax)
	if src.AlphaMax != 0 && dst.AlphaMax != 0 {
		a = rescale(a, src.AlphaMax, dst.AlphaMax)
	} else {
		a = 0
	}
	return dst.Pack(r, g, b, a)
}

// RGBA32 is the canonical server-side pixel format this module stores
// FrameBuffers in internally: 32bpp, true colour, 8 bits per channel,
// byte-order-neutral (conversion always happens explicitly via Convert).
var RGBA32 = Format{
	BPP:        32,
	Depth:      24,
	TrueColour: true,
	RedMax:     0xff,
	GreenMax:   0xff,
	BlueMax:    0xff,
	AlphaMax:   0xff,
	RedShift:   16,
	GreenShift: 8,
	BlueShift:  0,
	AlphaShift: 24,
}

// RGB565 is the common 16bpp 5-6-5 format.
var RGB565 = Format{
	BPP:        16,
	Depth:      16,
	TrueColour: true,
	RedMax:     0x1f,
	GreenMax:   0x3f,
	BlueMax:    0x1f,
	RedShift:   11,
	GreenShift: 5,
	BlueShift:  0,
}
