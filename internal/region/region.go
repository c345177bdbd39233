// Package region implements the rectangle geometry used throughout the
// server: intersect/join/align plus block tiling, shared by damage
// tracking and by the tile-based codecs (Hextile, TRLE, ZRLE).
package region

// Region is a rectangle with a signed 16-bit origin and unsigned 16-bit
// extent, matching the RFB rectangle header fields.
type Region struct {
	X, Y int16
	W, H uint16
}

// New constructs a Region.
func New(x, y int16, w, h uint16) Region {
	return Region{X: x, Y: y, W: w, H: h}
}

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool { return r.W == 0 || r.H == 0 }

// Right is the exclusive right edge (X + W), widened to avoid overflow.
func (r Region) Right() int32 { return int32(r.X) + int32(r.W) }

// Bottom is the exclusive bottom edge (Y + H).
func (r Region) Bottom() int32 { return int32(r.Y) + int32(r.H) }

// Area is W*H.
func (r Region) Area() int { return int(r.W) * int(r.H) }

// Contains reports whether the point (x,y) lies inside the region.
func (r Region) Contains(x, y int32) bool {
	return x >= int32(r.X) && x < r.Right() && y >= int32(r.Y) && y < r.Bottom()
}

// Intersect returns the overlapping sub-region of r and o. Intersect is
// commutative and associative: Intersect(a,b) == Intersect(b,a)
// and Intersect(Intersect(a,b),c) == Intersect(a,Intersect(b,c)).
func (r Region) Intersect(o Region) Region {
	x0 := max32(int32(r.X), int32(o.X))
	y0 := max32(int32(r.Y), int32(o.Y))
	x1 := min32(r.Right(), o.Right())
	y1 := min32(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Region{}
	}
	return Region{X: int16(x0), Y: int16(y0), W: uint16(x1 - x0), H: uint16(y1 - y0)}
}

// Join returns the bounding box covering both r and o. If one is empty, the
// other is returned unchanged.
func (r Region) Join(o Region) Region {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0 := min32(int32(r.X), int32(o.X))
	y0 := min32(int32(r.Y), int32(o.Y))
	x1 := max32(r.Right(), o.Right())
	y1 := max32(r.Bottom(), o.Bottom())
	return Region{X: int16(x0), Y: int16(y0), W: uint16(x1 - x0), H: uint16(y1 - y0)}
}

// Align rounds x,y down and w,h up to a multiple of n.
// Clip must be called afterward against the display region if the aligned
// result must stay in bounds.
func (r Region) Align(n uint16) Region {
	if n == 0 {
		return r
	}
	nx := int32(n)
	x0 := floorMultiple(int32(r.X), nx)
	y0 := floorMultiple(int32(r.Y), nx)
	x1 := ceilMultiple(r.Right(), nx)
	y1 := ceilMultiple(r.Bottom(), nx)
	return Region{X: int16(x0), Y: int16(y0), W: uint16(x1 - x0), H: uint16(y1 - y0)}
}

// Clip intersects r with bounds, the common case of aligning then clamping
// to the display region.
func (r Region) Clip(bounds Region) Region { return r.Intersect(bounds) }

// DivideBlocks tiles the region into tileSize x tileSize blocks, clipped to
// the region, in row-major order. Tiles cover the region and are pairwise
// disjoint; every tile t satisfies t ⊆ region, t.W <= tileSize,
// t.H <= tileSize.
func (r Region) DivideBlocks(tileSize uint16) []Region {
	if r.Empty() || tileSize == 0 {
		return nil
	}
	var tiles []Region
	for y := int32(r.Y); y < r.Bottom(); y += int32(tileSize) {
		h := uint16(min32(r.Bottom()-y, int32(tileSize)))
		for x := int32(r.X); x < r.Right(); x += int32(tileSize) {
			w := uint16(min32(r.Right()-x, int32(tileSize)))
			tiles = append(tiles, Region{X: int16(x), Y: int16(y), W: w, H: h})
		}
	}
	return tiles
}

// DivideCounts splits the region into exactly cols x rows blocks (used by
// screen-layout style partitioning rather than fixed-size tiling).
func (r Region) DivideCounts(cols, rows int) []Region {
	if r.Empty() || cols <= 0 || rows <= 0 {
		return nil
	}
	var out []Region
	baseW, remW := int(r.W)/cols, int(r.W)%cols
	baseH, remH := int(r.H)/rows, int(r.H)%rows
	y := int32(r.Y)
	for row := 0; row < rows; row++ {
		h := baseH
		if row < remH {
			h++
		}
		x := int32(r.X)
		for col := 0; col < cols; col++ {
			w := baseW
			if col < remW {
				w++
			}
			if w > 0 && h > 0 {
				out = append(out, Region{X: int16(x), Y: int16(y), W: uint16(w), H: uint16(h)})
			}
			x += int32(w)
		}
		y += int32(h)
	}
	return out
}

// Point is a pixel coordinate relative to some region's origin.
type Point struct{ X, Y uint16 }

// PointIterator traverses (0,0)..(w,h) row-major.
type PointIterator struct {
	w, h uint16
	x, y uint16
	done bool
}

// Points returns a PointIterator over r's local (0,0)..(W,H) space.
func (r Region) Points() *PointIterator {
	return &PointIterator{w: r.W, h: r.H, done: r.Empty()}
}

// Next advances the iterator, returning false once exhausted.
func (it *PointIterator) Next() (Point, bool) {
	if it.done {
		return Point{}, false
	}
	p := Point{X: it.x, Y: it.y}
	it.x++
	if it.x >= it.w {
		it.x = 0
		it.y++
		if it.y >= it.h {
			it.done = true
		}
	}
	return p, true
}

func floorMultiple(v, n int32) int32 {
	m := v % n
	if m < 0 {
		m += n
	}
	return v - m
}

func ceilMultiple(v, n int32) int32 {
	return floorMultiple(v+n-1, n)
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
