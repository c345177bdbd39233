package codec

import "github.com/ltsm-go/ltsmcore/internal/pixelformat"

// cPixelSize returns the on-wire size of a "compressed pixel" for TRLE and
// ZRLE (RFC 6143 §7.7.5/§7.7.6): when the client's true-colour format is
// 32bpp/24-depth with all three colour channels inside the low 3 bytes, the
// high padding byte is dropped, so a cPixel is 3 bytes instead of 4.
func cPixelSize(f pixelformat.Format) int {
	if f.BPP == 32 && f.Depth <= 24 && fitsInLow3Bytes(f) {
		return 3
	}
	return f.BytesPerPixel()
}

func fitsInLow3Bytes(f pixelformat.Format) bool {
	highest := func(max uint16, shift uint8) int {
		if max == 0 {
			return -1
		}
		bits := 0
		for m := max; m != 0; m >>= 1 {
			bits++
		}
		return int(shift) + bits
	}
	r := highest(f.RedMax, f.RedShift)
	g := highest(f.GreenMax, f.GreenShift)
	b := highest(f.BlueMax, f.BlueShift)
	return r <= 24 && g <= 24 && b <= 24
}

// putCPixel writes px (in format f) as a cPixel, little-endian truncated to
// 3 bytes when applicable; otherwise the format's full pixel width in its
// declared byte order.
func putCPixel(buf []byte, f pixelformat.Format, px uint32) []byte {
	switch cPixelSize(f) {
	case 1:
		return append(buf, byte(px))
	case 2:
		if f.BigEndian {
			return append(buf, byte(px>>8), byte(px))
		}
		return append(buf, byte(px), byte(px>>8))
	case 3:
		return append(buf, byte(px), byte(px>>8), byte(px>>16))
	default:
		if f.BigEndian {
			return append(buf, byte(px>>24), byte(px>>16), byte(px>>8), byte(px))
		}
		return append(buf, byte(px), byte(px>>8), byte(px>>16), byte(px>>24))
	}
}

func readCPixel(buf []byte, f pixelformat.Format) uint32 {
	switch cPixelSize(f) {
	case 1:
		return uint32(buf[0])
	case 2:
		if f.BigEndian {
			return uint32(buf[0])<<8 | uint32(buf[1])
		}
		return uint32(buf[0]) | uint32(buf[1])<<8
	case 3:
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
	default:
		if f.BigEndian {
			return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		}
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	}
}
