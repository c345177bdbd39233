package framebuffer

import (
	"testing"

	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/stretchr/testify/require"
)

func checkerboard(reg region.Region) *FrameBuffer {
	fb := New(reg, pixelformat.RGBA32)
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		for x := int32(reg.X); x < reg.Right(); x++ {
			px := uint32(0x111111)
			if (x+y)%2 == 0 {
				px = 0xEEEEEE
			}
			_ = fb.SetPixel(x, y, px)
		}
	}
	return fb
}

func TestSetPixelPixelRoundTrip(t *testing.T) {
	reg := region.New(0, 0, 4, 4)
	fb := New(reg, pixelformat.RGBA32)
	require.NoError(t, fb.SetPixel(2, 3, 0xAABBCC))
	got, err := fb.Pixel(2, 3)
	require.NoError(t, err)
	require.EqualValues(t, 0xAABBCC, got)
}

func TestPixelOutOfRegionErrors(t *testing.T) {
	fb := New(region.New(0, 0, 2, 2), pixelformat.RGBA32)
	_, err := fb.Pixel(5, 5)
	require.Error(t, err)
}

func TestFillClipsToRegion(t *testing.T) {
	reg := region.New(0, 0, 4, 4)
	fb := New(reg, pixelformat.RGBA32)
	require.NoError(t, fb.Fill(region.New(-5, -5, 100, 100), 0x123456))
	for y := int32(0); y < 4; y++ {
		for x := int32(0); x < 4; x++ {
			px, _ := fb.Pixel(x, y)
			require.EqualValues(t, 0x123456, px)
		}
	}
}

func TestAllOfPixelSolidDetection(t *testing.T) {
	reg := region.New(0, 0, 4, 4)
	fb := New(reg, pixelformat.RGBA32)
	require.NoError(t, fb.Fill(reg, 0x00FF00))
	require.True(t, fb.AllOfPixel(0x00FF00, reg))
	require.NoError(t, fb.SetPixel(1, 1, 1))
	require.False(t, fb.AllOfPixel(0x00FF00, reg))
}

func TestMaxWeightPixelIsMode(t *testing.T) {
	reg := region.New(0, 0, 4, 1)
	fb := New(reg, pixelformat.RGBA32)
	_ = fb.SetPixel(0, 0, 7)
	_ = fb.SetPixel(1, 0, 7)
	_ = fb.SetPixel(2, 0, 9)
	_ = fb.SetPixel(3, 0, 7)
	require.EqualValues(t, 7, fb.MaxWeightPixel(reg))
}

func TestToRLERoundTrip(t *testing.T) {
	reg := region.New(0, 0, 8, 3)
	fb := checkerboard(reg)
	runs := fb.ToRLE(reg)

	back, err := FromRLE(reg, pixelformat.RGBA32, runs)
	require.NoError(t, err)
	for y := int32(reg.Y); y < reg.Bottom(); y++ {
		for x := int32(reg.X); x < reg.Right(); x++ {
			want, _ := fb.Pixel(x, y)
			got, _ := back.Pixel(x, y)
			require.Equal(t, want, got, "mismatch at (%d,%d)", x, y)
		}
	}
}

func TestToRLECollapsesRuns(t *testing.T) {
	reg := region.New(0, 0, 6, 1)
	fb := New(reg, pixelformat.RGBA32)
	require.NoError(t, fb.Fill(reg, 5))
	runs := fb.ToRLE(reg)
	require.Len(t, runs, 1)
	require.EqualValues(t, 6, runs[0].Length)
}

func TestBlitConvertsPixelFormat(t *testing.T) {
	srcReg := region.New(0, 0, 2, 2)
	src := New(srcReg, pixelformat.RGB565)
	require.NoError(t, src.Fill(srcReg, pixelformat.RGB565.Pack(0x1f, 0x3f, 0x1f, 0)))

	dstReg := region.New(0, 0, 4, 4)
	dst := New(dstReg, pixelformat.RGBA32)
	require.NoError(t, dst.Blit(src, srcReg, region.Point{X: 1, Y: 1}))

	px, err := dst.Pixel(1, 1)
	require.NoError(t, err)
	r, g, b, _ := pixelformat.RGBA32.Unpack(px)
	require.EqualValues(t, 0xff, r)
	require.EqualValues(t, 0xff, g)
	require.EqualValues(t, 0xff, b)
}
