package geo

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSource_Fetch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"name", "iso_code", "geom"}).
		AddRow("Kenya", "KEN", `{"type":"Polygon","coordinates":[[[33.9,-4.7],[41.9,-4.7],[41.9,5.0],[33.9,-4.7]]]}`).
		AddRow("Broken", "", `{"type":"Polygon","coordinates":"oops"}`).
		AddRow("Uganda", "UGA", `{"type":"MultiPolygon","coordinates":[[[[29.5,-1.5],[35.0,-1.5],[35.0,4.2],[29.5,-1.5]]]]}`)
	mock.ExpectQuery(`SELECT "name", COALESCE\("iso_code"::text, ''\), ST_AsGeoJSON\(geom\)\s+FROM geo.countries`).WillReturnRows(rows)

	src := PostgresSource{Pool: mock, Table: "geo.countries", Fields: Fields{ISO: "iso_code"}}
	features, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, features, 2)
	assert.Equal(t, "Kenya", features[0].Name)
	assert.Equal(t, "KEN", features[0].ISOCode)
	assert.Equal(t, "Uganda", features[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_InvalidTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := PostgresSource{Pool: mock, Table: "geo.countries; DROP TABLE x"}
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid boundary table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_ConfiguredColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"ADMIN", "ADM0_A3", "geom"}).
		AddRow("Kenya", "KEN", `{"type":"Polygon","coordinates":[[[33.9,-4.7],[41.9,-4.7],[41.9,5.0],[33.9,-4.7]]]}`)
	mock.ExpectQuery(`SELECT "ADMIN", COALESCE\("ADM0_A3"::text, ''\), ST_AsGeoJSON\(geom\)\s+FROM public.boundaries\s+WHERE geom IS NOT NULL\s+ORDER BY "ADMIN"`).
		WillReturnRows(rows)

	src := PostgresSource{Pool: mock, Table: "public.boundaries", Fields: Fields{Name: "ADMIN", ISO: "ADM0_A3"}}
	features, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "Kenya", features[0].Name)
	assert.Equal(t, "KEN", features[0].ISOCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_InvalidColumn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tests := []struct {
		name   string
		fields Fields
		want   string
	}{
		{"name", Fields{Name: "name; DROP TABLE x"}, "invalid name column"},
		{"iso", Fields{ISO: `iso"code`}, "invalid iso column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PostgresSource{Pool: mock, Table: "geo.countries", Fields: tt.fields}.Fetch(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_CensusTablesRejected(t *testing.T) {
	for _, table := range []string{"geo.cbsa", "geo.counties", "public.cbsa_areas", "geo.census_regions"} {
		_, err := PostgresSource{Table: table}.Fetch(context.Background())
		require.Error(t, err, table)
		assert.Contains(t, err.Error(), "invalid boundary table")
	}
}

func TestPostgresSource_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT "name"`).WillReturnError(fmt.Errorf("connection refused"))

	_, err = PostgresSource{Pool: mock, Table: "geo.admin1"}.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geo: query boundaries")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_RowError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"name", "iso_code", "geom"}).
		AddRow("Kenya", "KEN", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`).
		RowError(0, fmt.Errorf("network reset"))
	mock.ExpectQuery(`SELECT "name"`).WillReturnRows(rows)

	_, err = PostgresSource{Pool: mock, Table: "geo.countries"}.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterate boundary rows")
}
