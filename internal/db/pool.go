// Package db provides the database handle abstraction shared by PostGIS-backed readers.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Pool is the subset of *pgxpool.Pool used by readers. pgxmock pools satisfy it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}
