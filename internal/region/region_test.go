package region

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntersectCommutative(t *testing.T) {
	a := New(0, 0, 10, 10)
	b := New(5, 5, 10, 10)
	require.Equal(t, a.Intersect(b), b.Intersect(a))
}

func TestIntersectAssociative(t *testing.T) {
	a := New(0, 0, 20, 20)
	b := New(5, 5, 10, 10)
	c := New(8, 2, 6, 14)
	require.Equal(t, a.Intersect(b).Intersect(c), a.Intersect(b.Intersect(c)))
}

func TestDivideBlocksCoverAndDisjoint(t *testing.T) {
	r := New(0, 0, 37, 21)
	tiles := r.DivideBlocks(16)
	require.NotEmpty(t, tiles)

	covered := make(map[[2]int32]bool)
	for _, tile := range tiles {
		require.LessOrEqual(t, tile.W, uint16(16))
		require.LessOrEqual(t, tile.H, uint16(16))
		require.Equal(t, tile, tile.Intersect(r))
		for y := int32(tile.Y); y < tile.Bottom(); y++ {
			for x := int32(tile.X); x < tile.Right(); x++ {
				key := [2]int32{x, y}
				require.False(t, covered[key], "pixel (%d,%d) covered twice", x, y)
				covered[key] = true
			}
		}
	}
	require.Equal(t, r.Area(), len(covered))
}

func TestAlignRoundsOutward(t *testing.T) {
	r := New(3, 5, 10, 10)
	a := r.Align(4)
	require.EqualValues(t, 0, a.X)
	require.EqualValues(t, 4, a.Y)
	require.True(t, a.W >= r.W)
	require.True(t, a.H >= r.H)
	require.Zero(t, a.X%4)
	require.Zero(t, a.Y%4)
}

func TestPointIteratorRowMajor(t *testing.T) {
	r := New(0, 0, 3, 2)
	it := r.Points()
	var pts []Point
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		pts = append(pts, p)
	}
	require.Equal(t, []Point{
		{0, 0}, {1, 0}, {2, 0},
		{0, 1}, {1, 1}, {2, 1},
	}, pts)
}

func TestJoinEmptyOperand(t *testing.T) {
	r := New(1, 1, 5, 5)
	require.Equal(t, r, r.Join(Region{}))
	require.Equal(t, r, Region{}.Join(r))
}

func TestDivideCountsPartitionsExactly(t *testing.T) {
	r := New(0, 0, 10, 10)
	parts := r.DivideCounts(3, 3)
	total := 0
	for _, p := range parts {
		total += p.Area()
	}
	require.Equal(t, r.Area(), total)
}
