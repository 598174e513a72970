// Package tile partitions projected regions into a uniform grid over the canonical
// coordinate box for viewport culling and hit-testing.
package tile

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/statmap/internal/geo"
)

// Tile is one grid cell and the regions whose bounding boxes intersect it.
type Tile struct {
	GridX     int      `json:"grid_x"`
	GridY     int      `json:"grid_y"`
	RegionIDs []string `json:"region_ids"`
}

// Rect is an axis-aligned rectangle in canonical coordinates.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Index is an immutable grid index over one region set. Build a new Index when the
// region set changes; pan, zoom, and selection never touch it.
type Index struct {
	gridSize int
	canvas   float64
	cellSize float64
	regions  []geo.Region
	refs     [][]int // per cell, region positions in load order
}

// Build partitions the canonical box of side canvas into gridSize x gridSize cells and
// registers every region in each cell its bounding box intersects. Cells are half-open
// [k*size, (k+1)*size); coordinates outside the box clamp to the edge cells, so every
// region lands in at least one tile. Degenerate (zero-area) boxes land in exactly the
// cell containing them. A region without bounds is registered everywhere.
func Build(regions []geo.Region, gridSize int, canvas float64) *Index {
	if gridSize < 1 {
		gridSize = 1
	}
	ix := &Index{
		gridSize: gridSize,
		canvas:   canvas,
		cellSize: canvas / float64(gridSize),
		regions:  regions,
		refs:     make([][]int, gridSize*gridSize),
	}

	for i := range regions {
		x0, y0, x1, y1 := ix.cellSpan(regions[i].Bounds)
		for gy := y0; gy <= y1; gy++ {
			for gx := x0; gx <= x1; gx++ {
				c := gy*gridSize + gx
				ix.refs[c] = append(ix.refs[c], i)
			}
		}
	}
	return ix
}

// GridSize returns the number of cells along each axis.
func (ix *Index) GridSize() int { return ix.gridSize }

// Canvas returns the side length of the indexed canonical box.
func (ix *Index) Canvas() float64 { return ix.canvas }

// Regions returns the indexed regions in load order.
func (ix *Index) Regions() []geo.Region { return ix.regions }

// Tiles returns all gridSize*gridSize tiles, row by row.
func (ix *Index) Tiles() []Tile {
	tiles := make([]Tile, 0, len(ix.refs))
	for gy := 0; gy < ix.gridSize; gy++ {
		for gx := 0; gx < ix.gridSize; gx++ {
			t, _ := ix.Tile(gx, gy)
			tiles = append(tiles, t)
		}
	}
	return tiles
}

// Tile returns the tile at grid position (gx, gy).
func (ix *Index) Tile(gx, gy int) (Tile, bool) {
	if gx < 0 || gy < 0 || gx >= ix.gridSize || gy >= ix.gridSize {
		return Tile{}, false
	}
	refs := ix.refs[gy*ix.gridSize+gx]
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = ix.regions[r].ID
	}
	return Tile{GridX: gx, GridY: gy, RegionIDs: ids}, true
}

// TileRegions returns the regions registered in tile (gx, gy), in load order.
func (ix *Index) TileRegions(gx, gy int) []geo.Region {
	if gx < 0 || gy < 0 || gx >= ix.gridSize || gy >= ix.gridSize {
		return nil
	}
	refs := ix.refs[gy*ix.gridSize+gx]
	out := make([]geo.Region, len(refs))
	for i, r := range refs {
		out[i] = ix.regions[r]
	}
	return out
}

// Query returns the regions registered in any tile overlapping r, deduplicated and in
// load order so callers can render them back to front.
func (ix *Index) Query(r Rect) []geo.Region {
	if r.MaxX < r.MinX || r.MaxY < r.MinY {
		return nil
	}
	x0, x1 := ix.cellRange(r.MinX, r.MaxX)
	y0, y1 := ix.cellRange(r.MinY, r.MaxY)

	seen := make([]bool, len(ix.regions))
	for gy := y0; gy <= y1; gy++ {
		for gx := x0; gx <= x1; gx++ {
			for _, ref := range ix.refs[gy*ix.gridSize+gx] {
				seen[ref] = true
			}
		}
	}

	var out []geo.Region
	for i, ok := range seen {
		if ok {
			out = append(out, ix.regions[i])
		}
	}
	return out
}

// HitTest returns the topmost region whose projected geometry contains (x, y).
// Only the regions of the containing tile are examined.
func (ix *Index) HitTest(x, y float64) (geo.Region, bool) {
	if x < 0 || y < 0 || x > ix.canvas || y > ix.canvas {
		return geo.Region{}, false
	}
	gx := ix.cell(x)
	gy := ix.cell(y)
	refs := ix.refs[gy*ix.gridSize+gx]

	// Later regions are drawn on top.
	for i := len(refs) - 1; i >= 0; i-- {
		r := ix.regions[refs[i]]
		if r.Projected == nil {
			continue
		}
		if r.Bounds != nil && (!hasArea(r.Bounds) || !r.Bounds.OverlapsPoint(geom.XY, geom.Coord{x, y})) {
			continue
		}
		if containsPoint(r.Projected, x, y) {
			return r, true
		}
	}
	return geo.Region{}, false
}

// Occupancy returns the number of regions registered per tile, row by row.
func (ix *Index) Occupancy() [][]int {
	out := make([][]int, ix.gridSize)
	for gy := range out {
		out[gy] = make([]int, ix.gridSize)
		for gx := range out[gy] {
			out[gy][gx] = len(ix.refs[gy*ix.gridSize+gx])
		}
	}
	return out
}

// cellSpan returns the inclusive cell range covered by b.
func (ix *Index) cellSpan(b *geom.Bounds) (x0, y0, x1, y1 int) {
	if b == nil || b.IsEmpty() {
		return 0, 0, ix.gridSize - 1, ix.gridSize - 1
	}
	x0, x1 = ix.cellRange(b.Min(0), b.Max(0))
	y0, y1 = ix.cellRange(b.Min(1), b.Max(1))
	return x0, y0, x1, y1
}

func (ix *Index) cellRange(lo, hi float64) (int, int) {
	return ix.cell(lo), ix.cell(hi)
}

// cell maps a canonical coordinate to its cell, clamped to the grid.
func (ix *Index) cell(v float64) int {
	c := int(math.Floor(v / ix.cellSize))
	if c < 0 {
		return 0
	}
	if c >= ix.gridSize {
		return ix.gridSize - 1
	}
	return c
}

// containsPoint reports whether (x, y) lies inside some polygon of mp: within its
// shell and outside every hole.
func containsPoint(mp *geom.MultiPolygon, x, y float64) bool {
	p := geom.Coord{x, y}
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, p, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for j := 1; j < poly.NumLinearRings(); j++ {
			if xy.IsPointInRing(geom.XY, p, poly.LinearRing(j).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// hasArea reports whether b spans a non-zero area. Zero-area regions stay in the
// grid but can never be hit.
func hasArea(b *geom.Bounds) bool {
	return b.Max(0) > b.Min(0) && b.Max(1) > b.Min(1)
}
