package geo

import (
	"context"
	"math"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ShapefileSource reads boundary polygons from an ESRI shapefile and its .dbf attributes.
type ShapefileSource struct {
	Path   string
	Fields Fields
}

// Fetch implements Source.
func (s ShapefileSource) Fetch(ctx context.Context) ([]Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: fetch shapefile")
	}

	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	nameField := s.Fields.Name
	if nameField == "" {
		nameField = "NAME"
	}
	nameIdx := fieldIndex(reader, nameField)
	if nameIdx < 0 {
		return nil, eris.Errorf("geo: shapefile field %q not found", nameField)
	}
	isoIdx := -1
	if s.Fields.ISO != "" {
		isoIdx = fieldIndex(reader, s.Fields.ISO)
	}

	var features []Feature
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		name := NormalizeName(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			skipped++
			continue
		}
		g := polygonToMultiPolygon(poly)
		if g == nil {
			skipped++
			continue
		}

		f := Feature{Name: name, Geometry: g}
		if isoIdx >= 0 {
			f.ISOCode = strings.TrimSpace(strings.TrimRight(reader.Attribute(isoIdx), "\x00"))
		}
		features = append(features, f)

		if n%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "geo: read shapefile")
			}
		}
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped shapefile records",
			zap.String("path", s.Path),
			zap.Int("skipped", skipped),
		)
	}

	return features, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile outer rings run clockwise and holes counter-clockwise; each hole joins
// the smallest shell containing it. A hole with no enclosing shell is kept as a
// shell of its own.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var shells, holes [][]float64
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start >= end {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		// Orientation needs at least three distinct vertices plus the closing point.
		if len(flat) >= 8 && xy.IsRingCounterClockwise(geom.XY, flat) {
			holes = append(holes, flat)
		} else {
			shells = append(shells, flat)
		}
	}

	rings := make([][][]float64, len(shells))
	for i, shell := range shells {
		rings[i] = [][]float64{shell}
	}
	for _, hole := range holes {
		if k := enclosingShell(shells, hole); k >= 0 {
			rings[k] = append(rings[k], hole)
			continue
		}
		rings = append(rings, [][]float64{hole})
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, polyRings := range rings {
		poly := geom.NewPolygon(geom.XY)
		for _, flat := range polyRings {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
				zap.L().Debug("geo: skipping malformed polygon ring", zap.Int("polygon", i), zap.Error(err))
			}
		}
		if poly.NumLinearRings() == 0 {
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int("polygon", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// enclosingShell returns the index of the smallest shell containing the first vertex
// of hole, or -1.
func enclosingShell(shells [][]float64, hole []float64) int {
	p := geom.Coord{hole[0], hole[1]}
	best, bestArea := -1, math.Inf(1)
	for i, shell := range shells {
		if !xy.IsPointInRing(geom.XY, p, shell) {
			continue
		}
		b := geom.NewLinearRingFlat(geom.XY, shell).Bounds()
		if area := (b.Max(0) - b.Min(0)) * (b.Max(1) - b.Min(1)); area < bestArea {
			best, bestArea = i, area
		}
	}
	return best
}

func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
