package geo

import (
	"fmt"
	"math"
)

// maxLatitude is the Mercator cutoff; beyond it y diverges.
const maxLatitude = 85.05112878

// Projection is a fixed-parameter Mercator projection. Center (lng, lat in degrees)
// lands on Translate in canonical units, and Scale is canonical units per radian.
type Projection struct {
	Center    [2]float64
	Scale     float64
	Translate [2]float64
}

// Point projects a geographic coordinate into the canonical coordinate box.
// Y grows downward so north is up when the box is rendered.
func (p Projection) Point(lng, lat float64) (x, y float64) {
	x = p.Translate[0] + p.Scale*radians(lng-p.Center[0])
	y = p.Translate[1] - p.Scale*(mercatorY(lat)-mercatorY(p.Center[1]))
	return x, y
}

// String implements fmt.Stringer.
func (p Projection) String() string {
	return fmt.Sprintf("mercator(center=%g,%g scale=%g translate=%g,%g)",
		p.Center[0], p.Center[1], p.Scale, p.Translate[0], p.Translate[1])
}

func mercatorY(lat float64) float64 {
	lat = math.Max(-maxLatitude, math.Min(maxLatitude, lat))
	return math.Log(math.Tan(math.Pi/4 + radians(lat)/2))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
