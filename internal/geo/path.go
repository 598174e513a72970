package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// pathWriter encodes projected rings as SVG path commands over absolute coordinates.
type pathWriter struct {
	sb        strings.Builder
	precision int
	scale     float64
}

func newPathWriter(precision int) *pathWriter {
	if precision < 0 {
		precision = 0
	}
	return &pathWriter{precision: precision, scale: math.Pow(10, float64(precision))}
}

// ring writes one closed sub-path: move to the first point, line to the rest, close.
// The ring must already have its duplicated closing point removed.
func (w *pathWriter) ring(coords []geom.Coord) {
	for i, c := range coords {
		if i == 0 {
			w.sb.WriteByte('M')
		} else {
			w.sb.WriteByte('L')
		}
		w.sb.WriteString(w.number(c[0]))
		w.sb.WriteByte(',')
		w.sb.WriteString(w.number(c[1]))
	}
	w.sb.WriteByte('Z')
}

func (w *pathWriter) String() string {
	return w.sb.String()
}

// number rounds to the writer's precision and prints the shortest exact form.
// Rounding first makes output independent of float noise below that precision.
func (w *pathWriter) number(v float64) string {
	v = math.Round(v*w.scale) / w.scale
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
