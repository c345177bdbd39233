package codec

import (
	"io"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
)

// Tile subencoding values shared by TRLE and ZRLE (RFC 6143 §7.7.5/§7.7.6):
// 0 raw, 1 solid, 2..16 packed palette (value = palette size), 128 plain
// RLE, 129..255 palette RLE (value-128 = palette size). 17..127 are
// rejected as malformed.
const (
	tileRaw        = 0
	tileSolid      = 1
	tilePlainRLE   = 128
	tilePaletteMax = 16
)

// encodeTileBody writes one TRLE/ZRLE tile (<=64x64) for the absolute
// region tile of fb, as subencoding byte + body, using internal/framebuffer's
// ToRLE for plain-RLE tiles. Shared by trle.go
// (written straight to the wire) and zrle.go (written into a persistent
// zlib stream).
func encodeTileBody(w io.Writer, fb *framebuffer.FrameBuffer, tile region.Region, format pixelformat.Format) error {
	palette := distinctConvertedPixels(fb, tile, format)

	switch {
	case len(palette) == 1:
		if err := writeByte(w, tileSolid); err != nil {
			return err
		}
		return writeCPixel(w, format, palette[0])

	case len(palette) >= 2 && len(palette) <= tilePaletteMax:
		if err := writeByte(w, byte(len(palette))); err != nil {
			return err
		}
		index := make(map[uint32]int, len(palette))
		for i, px := range palette {
			index[px] = i
			if err := writeCPixel(w, format, px); err != nil {
				return err
			}
		}
		return writePackedPalette(w, fb, tile, format, index, len(palette))

	default:
		if err := writeByte(w, tilePlainRLE); err != nil {
			return err
		}
		return writePlainRLE(w, fb, tile, format)
	}
}

// decodeTileBody reads one tile of the given absolute region and client
// format, supporting every subencoding a compliant encoder may emit even
// though this package's own encoder never produces palette-RLE or raw
// tiles (it always prefers solid/packed-palette/plain-RLE).
func decodeTileBody(r io.Reader, tile region.Region, format pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	sub, err := readByte(r)
	if err != nil {
		return nil, err
	}
	fb := framebuffer.New(tile, format)

	switch {
	case sub == tileRaw:
		for p := tile.Points(); ; {
			pt, ok := p.Next()
			if !ok {
				break
			}
			px, err := readCPixelFrom(r, format)
			if err != nil {
				return nil, err
			}
			if err := fb.SetPixel(int32(tile.X)+int32(pt.X), int32(tile.Y)+int32(pt.Y), px); err != nil {
				return nil, err
			}
		}
		return fb, nil

	case sub == tileSolid:
		px, err := readCPixelFrom(r, format)
		if err != nil {
			return nil, err
		}
		if err := fb.Fill(tile, px); err != nil {
			return nil, err
		}
		return fb, nil

	case sub >= 2 && sub <= tilePaletteMax:
		size := int(sub)
		palette := make([]uint32, size)
		for i := range palette {
			px, err := readCPixelFrom(r, format)
			if err != nil {
				return nil, err
			}
			palette[i] = px
		}
		return fb, readPackedPalette(r, fb, tile, palette)

	case sub == tilePlainRLE:
		return fb, readPlainRLE(r, fb, tile, format)

	case sub < tilePlainRLE: // 17..127
		return nil, ltsmerr.New(ltsmerr.CodecFormat, "trle: invalid tile subencoding")

	default: // 129..255: palette RLE
		size := int(sub) - 128
		palette := make([]uint32, size)
		for i := range palette {
			px, err := readCPixelFrom(r, format)
			if err != nil {
				return nil, err
			}
			palette[i] = px
		}
		return fb, readPaletteRLE(r, fb, tile, palette)
	}
}

func distinctConvertedPixels(fb *framebuffer.FrameBuffer, tile region.Region, format pixelformat.Format) []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32
	for y := int32(tile.Y); y < tile.Bottom() && len(out) <= tilePaletteMax; y++ {
		for x := int32(tile.X); x < tile.Right(); x++ {
			px, _ := fb.Pixel(x, y)
			if fb.Format != format {
				px = pixelformat.Convert(px, fb.Format, format)
			}
			if !seen[px] {
				seen[px] = true
				out = append(out, px)
				if len(out) > tilePaletteMax {
					return out
				}
			}
		}
	}
	return out
}

func bitsForPalette(size int) int {
	switch {
	case size <= 2:
		return 1
	case size <= 4:
		return 2
	default:
		return 4
	}
}

func writePackedPalette(w io.Writer, fb *framebuffer.FrameBuffer, tile region.Region, format pixelformat.Format, index map[uint32]int, size int) error {
	bpp := bitsForPalette(size)
	perByte := 8 / bpp
	for y := int32(tile.Y); y < tile.Bottom(); y++ {
		var cur byte
		nbits := 0
		for x := int32(tile.X); x < tile.Right(); x++ {
			px, _ := fb.Pixel(x, y)
			if fb.Format != format {
				px = pixelformat.Convert(px, fb.Format, format)
			}
			idx := index[px]
			cur = cur<<uint(bpp) | byte(idx)
			nbits++
			if nbits == perByte {
				if err := writeByte(w, cur); err != nil {
					return err
				}
				cur, nbits = 0, 0
			}
		}
		if nbits > 0 {
			cur <<= uint((perByte - nbits) * bpp)
			if err := writeByte(w, cur); err != nil {
				return err
			}
		}
	}
	return nil
}

func readPackedPalette(r io.Reader, fb *framebuffer.FrameBuffer, tile region.Region, palette []uint32) error {
	bpp := bitsForPalette(len(palette))
	perByte := 8 / bpp
	mask := byte(1<<uint(bpp)) - 1
	for y := int32(tile.Y); y < tile.Bottom(); y++ {
		var cur byte
		nbits := 0
		for x := int32(tile.X); x < tile.Right(); x++ {
			if nbits == 0 {
				b, err := readByte(r)
				if err != nil {
					return err
				}
				cur = b
				nbits = perByte
			}
			shift := uint((nbits - 1) * bpp)
			idx := (cur >> shift) & mask
			nbits--
			if int(idx) >= len(palette) {
				return errPaletteIndexRange
			}
			if err := fb.SetPixel(x, y, palette[idx]); err != nil {
				return err
			}
		}
	}
	return nil
}

var errPaletteIndexRange = errPaletteIndex{}

type errPaletteIndex struct{}

func (errPaletteIndex) Error() string { return "trle: packed palette index out of range" }

func writePlainRLE(w io.Writer, fb *framebuffer.FrameBuffer, tile region.Region, format pixelformat.Format) error {
	runs := fb.ToRLE(tile)
	for _, run := range runs {
		px := run.Pixel
		if fb.Format != format {
			px = pixelformat.Convert(px, fb.Format, format)
		}
		if err := writeCPixel(w, format, px); err != nil {
			return err
		}
		if err := writeRunLength(w, run.Length); err != nil {
			return err
		}
	}
	return nil
}

func readPlainRLE(r io.Reader, fb *framebuffer.FrameBuffer, tile region.Region, format pixelformat.Format) error {
	total := int64(tile.W) * int64(tile.H)
	x, y := int32(tile.X), int32(tile.Y)
	var done int64
	for done < total {
		px, err := readCPixelFrom(r, format)
		if err != nil {
			return err
		}
		n, err := readRunLength(r)
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := fb.SetPixel(x, y, px); err != nil {
				return err
			}
			x++
			if x >= tile.Right() {
				x = int32(tile.X)
				y++
			}
		}
		done += int64(n)
	}
	return nil
}

func readPaletteRLE(r io.Reader, fb *framebuffer.FrameBuffer, tile region.Region, palette []uint32) error {
	total := int64(tile.W) * int64(tile.H)
	x, y := int32(tile.X), int32(tile.Y)
	var done int64
	for done < total {
		b, err := readByte(r)
		if err != nil {
			return err
		}
		idx := int(b & 0x7F)
		if idx >= len(palette) {
			return errPaletteIndexRange
		}
		px := palette[idx]
		n := uint32(1)
		if b&0x80 != 0 {
			n, err = readRunLength(r)
			if err != nil {
				return err
			}
		}
		for i := uint32(0); i < n; i++ {
			if err := fb.SetPixel(x, y, px); err != nil {
				return err
			}
			x++
			if x >= tile.Right() {
				x = int32(tile.X)
				y++
			}
		}
		done += int64(n)
	}
	return nil
}

func writeRunLength(w io.Writer, n uint32) error {
	remaining := n - 1
	for remaining >= 255 {
		if err := writeByte(w, 255); err != nil {
			return err
		}
		remaining -= 255
	}
	return writeByte(w, byte(remaining))
}

func readRunLength(r io.Reader) (uint32, error) {
	var total uint32
	for {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		total += uint32(b)
		if b < 255 {
			break
		}
	}
	return total + 1, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeCPixel(w io.Writer, f pixelformat.Format, px uint32) error {
	buf := putCPixel(nil, f, px)
	_, err := w.Write(buf)
	return err
}

func readCPixelFrom(r io.Reader, f pixelformat.Format) (uint32, error) {
	buf := make([]byte, cPixelSize(f))
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return readCPixel(buf, f), nil
}
