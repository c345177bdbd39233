package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

type loopback struct{ *bytes.Buffer }

func (l loopback) Close() error { return nil }

func newLoopbackWire() *wire.Wire {
	return wire.New(loopback{new(bytes.Buffer)})
}

// patternFB builds a framebuffer with enough structure (solid bands, a
// gradient, and a few distinct colours) to exercise every tile case the
// codecs branch on: solid runs, small palettes, and >16-colour regions.
func patternFB(reg region.Region) *framebuffer.FrameBuffer {
	fb := framebuffer.New(reg, pixelformat.RGBA32)
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		for x := int32(reg.X); x < reg.Right(); x++ {
			var px uint32
			switch {
			case y < reg.Bottom()/2:
				px = 0x112233
			case (x+y)%5 == 0:
				px = uint32(x%32)<<16 | uint32(y%32)<<8 | 0x10
			default:
				px = 0xAABBCC
			}
			_ = fb.SetPixel(x, y, px)
		}
	}
	return fb
}

func assertFBEqual(t *testing.T, reg region.Region, want, got *framebuffer.FrameBuffer) {
	t.Helper()
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		for x := int32(reg.X); x < reg.Right(); x++ {
			wp, err := want.Pixel(x, y)
			require.NoError(t, err)
			gp, err := got.Pixel(x, y)
			require.NoError(t, err)
			require.Equal(t, wp, gp, "mismatch at (%d,%d)", x, y)
		}
	}
}

func roundTrip(t *testing.T, enc, dec Codec, reg region.Region) {
	t.Helper()
	fb := patternFB(reg)
	w := newLoopbackWire()
	require.NoError(t, enc.Encode(w, fb, pixelformat.RGBA32))
	require.NoError(t, w.Flush())

	got, err := dec.Decode(w, reg, pixelformat.RGBA32)
	require.NoError(t, err)
	assertFBEqual(t, reg, fb, got)
}

func TestRawRoundTrip(t *testing.T) {
	roundTrip(t, NewRaw(), NewRaw(), region.New(0, 0, 20, 20))
}

func TestRRERoundTrip(t *testing.T) {
	roundTrip(t, NewRRE(), NewRRE(), region.New(0, 0, 20, 20))
}

func TestCoRRERoundTrip(t *testing.T) {
	roundTrip(t, NewCoRRE(), NewCoRRE(), region.New(0, 0, 40, 40))
}

func TestCoRRERejectsOversizeTile(t *testing.T) {
	fb := patternFB(region.New(0, 0, 300, 10))
	w := newLoopbackWire()
	err := NewCoRRE().Encode(w, fb, pixelformat.RGBA32)
	require.Error(t, err)
}

func TestHextileRoundTrip(t *testing.T) {
	roundTrip(t, NewHextile(), NewHextile(), region.New(3, 5, 37, 21))
}

func TestTRLERoundTrip(t *testing.T) {
	roundTrip(t, NewTRLE(), NewTRLE(), region.New(0, 0, 70, 70))
}

func TestTRLESolidTileBody(t *testing.T) {
	reg := region.New(0, 0, 64, 64)
	fb := framebuffer.New(reg, pixelformat.RGBA32)
	require.NoError(t, fb.Fill(reg, 0x00AA55CC))

	buf := new(bytes.Buffer)
	w := wire.New(loopback{buf})
	require.NoError(t, NewTRLE().Encode(w, fb, pixelformat.RGBA32))
	require.NoError(t, w.Flush())

	// One solid tile: subencoding byte 1 followed by the 3-byte CPixel
	// (low 3 bytes, little-endian) of the fill pixel.
	body := buf.Bytes()
	require.Equal(t, []byte{0x01, 0xCC, 0x55, 0xAA}, body)
}

func TestZRLERoundTrip(t *testing.T) {
	roundTrip(t, NewZRLE(), NewZRLE(), region.New(0, 0, 70, 70))
}

func TestZRLEPersistsDictionaryAcrossRectangles(t *testing.T) {
	enc := NewZRLE()
	dec := NewZRLE()
	w := newLoopbackWire()

	reg := region.New(0, 0, 65, 65)
	fb1 := patternFB(reg)
	fb2 := patternFB(reg)
	require.NoError(t, enc.Encode(w, fb1, pixelformat.RGBA32))
	require.NoError(t, enc.Encode(w, fb2, pixelformat.RGBA32))
	require.NoError(t, w.Flush())

	got1, err := dec.Decode(w, reg, pixelformat.RGBA32)
	require.NoError(t, err)
	assertFBEqual(t, reg, fb1, got1)

	got2, err := dec.Decode(w, reg, pixelformat.RGBA32)
	require.NoError(t, err)
	assertFBEqual(t, reg, fb2, got2)
}

func TestZlibRoundTrip(t *testing.T) {
	roundTrip(t, NewZlib(), NewZlib(), region.New(0, 0, 20, 20))
}

func TestLZ4RoundTrip(t *testing.T) {
	roundTrip(t, NewLZ4(), NewLZ4(), region.New(0, 0, 20, 20))
}

func TestQOIRoundTrip(t *testing.T) {
	roundTrip(t, NewQOI(), NewQOI(), region.New(0, 0, 33, 17))
}

func TestRegistrySelectPrefersPriorityOrder(t *testing.T) {
	reg := NewRegistry()
	id := reg.Select([]ID{Raw, Hextile, ZRLE, RRE})
	require.Equal(t, ZRLE, id)
}

func TestRegistrySelectFallsBackToRaw(t *testing.T) {
	reg := NewRegistry()
	id := reg.Select([]ID{ID(9999)})
	require.Equal(t, Raw, id)
}

func TestCompressLevelFromPseudo(t *testing.T) {
	level, ok := CompressLevelFromPseudo(-247)
	require.True(t, ok)
	require.Equal(t, 9, level)

	level, ok = CompressLevelFromPseudo(-255)
	require.True(t, ok)
	require.Equal(t, 1, level)

	_, ok = CompressLevelFromPseudo(-100)
	require.False(t, ok)
}
