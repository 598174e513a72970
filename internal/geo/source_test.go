package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestFileSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "africa.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0o644))

	features, err := FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, features, 3)
}

func TestFileSource_Missing(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "nope.geojson")}.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geo: open")
}

func TestFileSource_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FileSource{Path: "irrelevant"}.Fetch(ctx)
	require.Error(t, err)
}

func TestHTTPSource_Fetch(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(sampleCollection))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, HTTPOptions{RequestsPerSecond: 100})
	features, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, features, 3)
	assert.Equal(t, "statmap/1.0", gotUA.Load())
}

func TestHTTPSource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, HTTPOptions{}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestHTTPSource_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, HTTPOptions{}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feature collection")
}

func TestHTTPSource_CanceledWhileThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleCollection))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, HTTPOptions{RequestsPerSecond: 0.001})
	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	// The single burst token is spent; the next call must wait far longer than
	// the context allows.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
}

func TestSourceForPath(t *testing.T) {
	fields := Fields{Name: "ADMIN", ISO: "ADM0_A3"}
	assert.Equal(t, ShapefileSource{Path: "data/countries.SHP", Fields: fields}, SourceForPath("data/countries.SHP", fields))
	assert.Equal(t, FileSource{Path: "data/africa.geojson", Fields: fields}, SourceForPath("data/africa.geojson", fields))
}

const adminCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ADMIN": "Kenya", "ADM0_A3": "KEN", "name": "ignored"},
     "geometry": {"type": "Polygon", "coordinates": [[[33.9,-4.7],[41.9,-4.7],[41.9,5.0],[33.9,-4.7]]]}}
  ]
}`

func TestFileSource_ConfiguredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.geojson")
	require.NoError(t, os.WriteFile(path, []byte(adminCollection), 0o644))

	features, err := SourceForPath(path, Fields{Name: "ADMIN", ISO: "ADM0_A3"}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "Kenya", features[0].Name)
	assert.Equal(t, "KEN", features[0].ISOCode)
}

func TestHTTPSource_ConfiguredFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(adminCollection))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, HTTPOptions{RequestsPerSecond: 100, Fields: Fields{Name: "ADMIN", ISO: "ADM0_A3"}})
	features, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "Kenya", features[0].Name)
	assert.Equal(t, "KEN", features[0].ISOCode)
}

func writeTestShapefile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 40),
		shp.StringField("ISO_A3", 3),
	}))

	kenya := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
		{X: 33.9, Y: -4.7}, {X: 33.9, Y: 5.0}, {X: 41.9, Y: 5.0}, {X: 41.9, Y: -4.7}, {X: 33.9, Y: -4.7},
	}}))
	islands := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 10, Y: 10}, {X: 10, Y: 12}, {X: 12, Y: 12}, {X: 10, Y: 10}},
		{{X: 20, Y: 20}, {X: 20, Y: 22}, {X: 22, Y: 22}, {X: 20, Y: 20}},
	}))
	unnamed := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
		{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0},
	}}))

	w.Write(&kenya)
	require.NoError(t, w.WriteAttribute(0, 0, "Kenya"))
	require.NoError(t, w.WriteAttribute(0, 1, "KEN"))
	w.Write(&islands)
	require.NoError(t, w.WriteAttribute(1, 0, "Islands"))
	require.NoError(t, w.WriteAttribute(1, 1, "ISL"))
	w.Write(&unnamed)
	require.NoError(t, w.WriteAttribute(2, 0, ""))
	w.Close()
	fixDBFName(t, path)

	return path
}

// fixDBFName moves the attribute table to where shp.Open looks for it. go-shp v0.1.1's
// writer names it "<base>dbf", without the dot.
func fixDBFName(t *testing.T, path string) {
	t.Helper()
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	_, err := os.Stat(base + ".dbf")
	require.NoError(t, err)
}

func TestShapefileSource_Fetch(t *testing.T) {
	path := writeTestShapefile(t)

	features, err := ShapefileSource{Path: path, Fields: Fields{Name: "name", ISO: "ISO_A3"}}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "Kenya", features[0].Name)
	assert.Equal(t, "KEN", features[0].ISOCode)
	mp, ok := features[0].Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())

	assert.Equal(t, "Islands", features[1].Name)
	assert.Equal(t, 2, features[1].Geometry.(*geom.MultiPolygon).NumPolygons())

	regions := testProjector().Project(features)
	require.Len(t, regions, 2)
	assert.Equal(t, 2, countByte(regions[1].Path, 'M'))
}

func TestShapefileSource_MissingNameField(t *testing.T) {
	path := writeTestShapefile(t)

	_, err := ShapefileSource{Path: path, Fields: Fields{Name: "ADMIN"}}.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "ADMIN" not found`)
}

func TestShapefileSource_MissingFile(t *testing.T) {
	_, err := ShapefileSource{Path: filepath.Join(t.TempDir(), "missing.shp")}.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geo: open shapefile")
}

func TestPolygonToMultiPolygon_GroupsHoles(t *testing.T) {
	// Shells run clockwise, holes counter-clockwise. The second shell sits apart with
	// no hole of its own.
	rec := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 10, Y: 10}, {X: 10, Y: 20}, {X: 20, Y: 20}, {X: 20, Y: 10}, {X: 10, Y: 10}},
		{{X: 13, Y: 13}, {X: 17, Y: 13}, {X: 17, Y: 17}, {X: 13, Y: 17}, {X: 13, Y: 13}},
		{{X: 30, Y: 10}, {X: 30, Y: 12}, {X: 32, Y: 12}, {X: 32, Y: 10}, {X: 30, Y: 10}},
	}))

	mp := polygonToMultiPolygon(&rec)
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings(), "hole joins the shell around it")
	assert.Equal(t, geom.Coord{13, 13}, mp.Polygon(0).LinearRing(1).Coord(0))
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())
}

func TestPolygonToMultiPolygon_NestedShells(t *testing.T) {
	// An island inside a lake inside a country: the island's own hole belongs to the
	// island, the smallest shell around it.
	rec := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 100}, {X: 100, Y: 100}, {X: 100, Y: 0}, {X: 0, Y: 0}},
		{{X: 10, Y: 10}, {X: 90, Y: 10}, {X: 90, Y: 90}, {X: 10, Y: 90}, {X: 10, Y: 10}},
		{{X: 30, Y: 30}, {X: 30, Y: 70}, {X: 70, Y: 70}, {X: 70, Y: 30}, {X: 30, Y: 30}},
		{{X: 40, Y: 40}, {X: 60, Y: 40}, {X: 60, Y: 60}, {X: 40, Y: 60}, {X: 40, Y: 40}},
	}))

	mp := polygonToMultiPolygon(&rec)
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, geom.Coord{10, 10}, mp.Polygon(0).LinearRing(1).Coord(0))
	assert.Equal(t, geom.Coord{40, 40}, mp.Polygon(1).LinearRing(1).Coord(0))
}

func TestPolygonToMultiPolygon_OrphanHole(t *testing.T) {
	rec := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}, {X: 0, Y: 0}},
	}))

	mp := polygonToMultiPolygon(&rec)
	require.NotNil(t, mp)
	assert.Equal(t, 1, mp.NumPolygons(), "a counter-clockwise ring with no shell is kept")
}

func TestPolygonToMultiPolygon_Empty(t *testing.T) {
	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))
}
