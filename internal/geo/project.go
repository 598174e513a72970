package geo

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Sentinel errors for features that cannot become regions.
var (
	ErrUnsupportedGeometry = eris.New("geo: unsupported geometry type")
	ErrEmptyGeometry       = eris.New("geo: geometry has no coordinates")
)

// FallbackID identifies the placeholder region rendered when no boundary data is available.
const FallbackID = "fallback"

// Region is one selectable map unit. Name is the join key used by selection,
// filters, and report counts. Path, Projected, and Bounds are derived once from
// Geometry and never change afterwards.
type Region struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ISOCode  string `json:"iso_code,omitempty"`
	Path     string `json:"path"`
	Fallback bool   `json:"fallback,omitempty"`

	Geometry  geom.T             `json:"-"`
	Projected *geom.MultiPolygon `json:"-"`
	Bounds    *geom.Bounds       `json:"-"`
}

// Projector applies one fixed projection to every feature of a boundary dataset.
type Projector struct {
	projection Projection
	precision  int
	canvas     float64
}

// NewProjector creates a Projector writing paths with the given decimal precision
// into a square canonical box of side canvas.
func NewProjector(p Projection, precision int, canvas float64) *Projector {
	return &Projector{projection: p, precision: precision, canvas: canvas}
}

// Projection returns the projector's fixed parameters.
func (pr *Projector) Projection() Projection {
	return pr.projection
}

// Canvas returns the side length of the canonical coordinate box.
func (pr *Projector) Canvas() float64 {
	return pr.canvas
}

// ViewBox returns the SVG viewBox descriptor of the canonical box, e.g. "0 0 1000 1000".
func (pr *Projector) ViewBox() string {
	side := strconv.FormatFloat(pr.canvas, 'f', -1, 64)
	return "0 0 " + side + " " + side
}

// Project converts features into regions. Malformed features are skipped and logged;
// one bad feature never aborts the batch. Output order follows input order.
func (pr *Projector) Project(features []Feature) []Region {
	log := zap.L().With(zap.String("component", "geo.project"))

	regions := make([]Region, 0, len(features))
	for i, f := range features {
		r, err := pr.ProjectFeature(f)
		if err != nil {
			log.Debug("geo: skipping feature",
				zap.Int("index", i),
				zap.String("name", f.Name),
				zap.Error(err),
			)
			continue
		}
		if r.ID == "" {
			r.ID = fmt.Sprintf("region-%d", i)
		}
		regions = append(regions, r)
	}
	return regions
}

// ProjectFeature converts a single Polygon or MultiPolygon feature into a region.
// Each polygon part becomes closed sub-paths (one per ring) concatenated into one path.
// Empty rings are dropped; a feature left with no rings is ErrEmptyGeometry.
func (pr *Projector) ProjectFeature(f Feature) (Region, error) {
	var parts [][][]geom.Coord
	switch g := f.Geometry.(type) {
	case *geom.Polygon:
		parts = [][][]geom.Coord{g.Coords()}
	case *geom.MultiPolygon:
		parts = g.Coords()
	case nil:
		return Region{}, ErrEmptyGeometry
	default:
		return Region{}, eris.Wrapf(ErrUnsupportedGeometry, "geo: %T", g)
	}

	w := newPathWriter(pr.precision)
	projected := make([][][]geom.Coord, 0, len(parts))
	for _, rings := range parts {
		var poly [][]geom.Coord
		for _, ring := range rings {
			open := openRing(ring)
			if len(open) == 0 {
				continue
			}
			pts := make([]geom.Coord, 0, len(open)+1)
			for _, c := range open {
				x, y := pr.projection.Point(c[0], c[1])
				pts = append(pts, geom.Coord{x, y})
			}
			w.ring(pts)
			poly = append(poly, append(pts, pts[0]))
		}
		if len(poly) > 0 {
			projected = append(projected, poly)
		}
	}
	if len(projected) == 0 {
		return Region{}, ErrEmptyGeometry
	}

	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(projected)
	if err != nil {
		return Region{}, eris.Wrap(err, "geo: build projected geometry")
	}

	return Region{
		ID:        f.ISOCode,
		Name:      f.Name,
		ISOCode:   f.ISOCode,
		Path:      w.String(),
		Geometry:  f.Geometry,
		Projected: mp,
		Bounds:    mp.Bounds(),
	}, nil
}

// FallbackRegions returns the single placeholder region covering the whole canonical box.
func (pr *Projector) FallbackRegions() []Region {
	c := pr.canvas
	outline := []geom.Coord{{0, 0}, {c, 0}, {c, c}, {0, c}}

	w := newPathWriter(pr.precision)
	w.ring(outline)

	mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{append(outline, outline[0])}})
	return []Region{{
		ID:        FallbackID,
		Name:      "Map unavailable",
		Path:      w.String(),
		Fallback:  true,
		Projected: mp,
		Bounds:    mp.Bounds(),
	}}
}

// openRing strips the explicit closing point of a ring so each vertex is written once.
// Rings that are not explicitly closed are treated as implicitly closed.
func openRing(ring []geom.Coord) []geom.Coord {
	n := len(ring)
	if n > 1 && ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		return ring[:n-1]
	}
	return ring
}
