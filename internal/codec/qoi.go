package codec

import (
	"bytes"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// QOICodec implements the "Quite OK Image" format as the LTSM pseudo-
// encoding's lossless whole-rectangle fallback (the selection priority
// sits QOI above LZ4/TJPG). A from-scratch implementation
// of the published QOI chunk grammar (index/diff/luma/run/rgb/rgba tags),
// operating on RGBA8888 pixels the same way image/jpeg's codec does.
type QOICodec struct{}

func NewQOI() *QOICodec { return &QOICodec{} }

func (c *QOICodec) Type() ID { return QOI }
func (c *QOICodec) Reset()   {}

const (
	qoiOpIndex = 0x00
	qoiOpDiff  = 0x40
	qoiOpLuma  = 0x80
	qoiOpRun   = 0xC0
	qoiOpRGB   = 0xFE
	qoiOpRGBA  = 0xFF
	qoiMask2   = 0xC0
)

type qoiPixel struct{ r, g, b, a byte }

func qoiHash(p qoiPixel) int {
	return (int(p.r)*3 + int(p.g)*5 + int(p.b)*7 + int(p.a)*11) % 64
}

func (c *QOICodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	var buf bytes.Buffer
	var index [64]qoiPixel
	prev := qoiPixel{0, 0, 0, 255}
	run := 0

	flushRun := func() {
		for run > 0 {
			n := run
			if n > 62 {
				n = 62
			}
			buf.WriteByte(byte(qoiOpRun | (n - 1)))
			run -= n
		}
	}

	width, height := int32(fb.Reg.W), int32(fb.Reg.H)
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			px, err := fb.Pixel(int32(fb.Reg.X)+x, int32(fb.Reg.Y)+y)
			if err != nil {
				return err
			}
			r, g, b, a := fb.Format.Unpack(px)
			cur := qoiPixel{
				r: scale8(r, fb.Format.RedMax),
				g: scale8(g, fb.Format.GreenMax),
				b: scale8(b, fb.Format.BlueMax),
				a: alphaOr(fb.Format, a, 255),
			}

			if cur == prev {
				run++
				if run == 62 {
					flushRun()
				}
				continue
			}
			flushRun()

			h := qoiHash(cur)
			if index[h] == cur {
				buf.WriteByte(byte(qoiOpIndex | h))
				prev = cur
				continue
			}
			index[h] = cur

			if cur.a != prev.a {
				buf.WriteByte(qoiOpRGBA)
				buf.WriteByte(cur.r)
				buf.WriteByte(cur.g)
				buf.WriteByte(cur.b)
				buf.WriteByte(cur.a)
				prev = cur
				continue
			}

			dr := int8(cur.r - prev.r)
			dg := int8(cur.g - prev.g)
			db := int8(cur.b - prev.b)
			if inDiffRange(dr) && inDiffRange(dg) && inDiffRange(db) {
				buf.WriteByte(byte(qoiOpDiff | (int(dr+2) << 4) | (int(dg+2) << 2) | int(db+2)))
				prev = cur
				continue
			}
			drg := dr - dg
			dbg := db - dg
			if inLumaRange(dg) && inLumaRange8(drg) && inLumaRange8(dbg) {
				buf.WriteByte(byte(qoiOpLuma | int(dg+32)))
				buf.WriteByte(byte((int(drg+8) << 4) | int(dbg+8)))
				prev = cur
				continue
			}

			buf.WriteByte(qoiOpRGB)
			buf.WriteByte(cur.r)
			buf.WriteByte(cur.g)
			buf.WriteByte(cur.b)
			prev = cur
		}
	}
	flushRun()

	if err := w.WriteU32BE(uint32(buf.Len())); err != nil {
		return err
	}
	return w.WriteBytes(buf.Bytes())
}

func inDiffRange(d int8) bool { return d >= -2 && d <= 1 }
func inLumaRange(d int8) bool { return d >= -32 && d <= 31 }
func inLumaRange8(d int8) bool { return d >= -8 && d <= 7 }

func alphaOr(f pixelformat.Format, a, fallback uint16) byte {
	if f.AlphaMax == 0 {
		return byte(fallback)
	}
	return scale8(a, f.AlphaMax)
}

func (c *QOICodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	n, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := r.ReadExact(buf); err != nil {
		return nil, err
	}

	fb := framebuffer.New(reg, clientFormat)
	var index [64]qoiPixel
	prev := qoiPixel{0, 0, 0, 255}
	run := 0
	pos := 0

	width, height := int32(reg.W), int32(reg.H)
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			if run == 0 {
				if pos >= len(buf) {
					return nil, ltsmerr.New(ltsmerr.CodecFormat, "qoi: stream exhausted")
				}
				tag := buf[pos]
				switch {
				case tag == qoiOpRGB:
					pos++
					if pos+3 > len(buf) {
						return nil, ltsmerr.New(ltsmerr.CodecFormat, "qoi: truncated rgb")
					}
					prev = qoiPixel{buf[pos], buf[pos+1], buf[pos+2], prev.a}
					pos += 3
				case tag == qoiOpRGBA:
					pos++
					if pos+4 > len(buf) {
						return nil, ltsmerr.New(ltsmerr.CodecFormat, "qoi: truncated rgba")
					}
					prev = qoiPixel{buf[pos], buf[pos+1], buf[pos+2], buf[pos+3]}
					pos += 4
				case tag&qoiMask2 == qoiOpIndex:
					prev = index[tag&0x3F]
					pos++
				case tag&qoiMask2 == qoiOpDiff:
					dr := int8((tag>>4)&0x03) - 2
					dg := int8((tag>>2)&0x03) - 2
					db := int8(tag&0x03) - 2
					prev = qoiPixel{prev.r + byte(dr), prev.g + byte(dg), prev.b + byte(db), prev.a}
					pos++
				case tag&qoiMask2 == qoiOpLuma:
					if pos+2 > len(buf) {
						return nil, ltsmerr.New(ltsmerr.CodecFormat, "qoi: truncated luma")
					}
					dg := int8(tag&0x3F) - 32
					b2 := buf[pos+1]
					drg := int8((b2>>4)&0x0F) - 8
					dbg := int8(b2&0x0F) - 8
					prev = qoiPixel{
						r: prev.r + byte(dg+drg),
						g: prev.g + byte(dg),
						b: prev.b + byte(dg+dbg),
						a: prev.a,
					}
					pos += 2
				default: // qoiOpRun
					run = int(tag&0x3F) + 1
					pos++
				}
				index[qoiHash(prev)] = prev
			}
			px := clientFormat.Pack(
				uint16(prev.r)*clientFormat.RedMax/255,
				uint16(prev.g)*clientFormat.GreenMax/255,
				uint16(prev.b)*clientFormat.BlueMax/255,
				qoiAlphaChannel(clientFormat, prev.a),
			)
			if err := fb.SetPixel(int32(reg.X)+x, int32(reg.Y)+y, px); err != nil {
				return nil, err
			}
			if run > 0 {
				run--
			}
		}
	}
	return fb, nil
}

func qoiAlphaChannel(f pixelformat.Format, a byte) uint16 {
	if f.AlphaMax == 0 {
		return 0
	}
	return uint16(a) * f.AlphaMax / 255
}
