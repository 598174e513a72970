package geo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/statmap/internal/db"
)

// validBoundaryTables is an allowlist of tables PostgresSource may read from.
// The table name is interpolated into SQL, so it must never come from user input.
var validBoundaryTables = map[string]bool{
	"geo.countries":     true,
	"geo.admin1":        true,
	"public.boundaries": true,
}

// columnName matches the plain identifiers accepted for the name and ISO columns.
var columnName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresSource reads boundary polygons from a PostGIS table. Geometry is
// serialized server-side with ST_AsGeoJSON and decoded with go-geom. Fields names
// the name and ISO columns; empty means "name" and no ISO column.
type PostgresSource struct {
	Pool   db.Pool
	Table  string
	Fields Fields
}

// Fetch implements Source.
func (s PostgresSource) Fetch(ctx context.Context) ([]Feature, error) {
	if !validBoundaryTables[s.Table] {
		return nil, eris.Errorf("geo: invalid boundary table %q", s.Table)
	}

	nameCol := s.Fields.Name
	if nameCol == "" {
		nameCol = "name"
	}
	if !columnName.MatchString(nameCol) {
		return nil, eris.Errorf("geo: invalid name column %q", nameCol)
	}
	isoExpr := "''"
	if s.Fields.ISO != "" {
		if !columnName.MatchString(s.Fields.ISO) {
			return nil, eris.Errorf("geo: invalid iso column %q", s.Fields.ISO)
		}
		isoExpr = fmt.Sprintf("COALESCE(%s::text, '')", pgx.Identifier{s.Fields.ISO}.Sanitize())
	}
	name := pgx.Identifier{nameCol}.Sanitize()

	sql := fmt.Sprintf(`
		SELECT %s, %s, ST_AsGeoJSON(geom)
		FROM %s
		WHERE geom IS NOT NULL
		ORDER BY %s`, name, isoExpr, s.Table, name)

	rows, err := s.Pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "geo: query boundaries")
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		var name, iso, geometry string
		if err := rows.Scan(&name, &iso, &geometry); err != nil {
			return nil, eris.Wrap(err, "geo: scan boundary row")
		}

		var g geom.T
		if err := geojson.Unmarshal([]byte(geometry), &g); err != nil {
			zap.L().Debug("geo: skipping boundary with undecodable geometry",
				zap.String("table", s.Table),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}

		name = NormalizeName(name)
		if name == "" {
			continue
		}
		features = append(features, Feature{Name: name, ISOCode: iso, Geometry: g})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: iterate boundary rows")
	}

	return features, nil
}
