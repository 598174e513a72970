package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statmap/internal/config"
	"github.com/sells-group/statmap/internal/geo"
	"github.com/sells-group/statmap/internal/mapview"
	"github.com/sells-group/statmap/internal/viewport"
)

// newProjector builds the fixed projection from map settings.
func newProjector(m config.MapConfig) *geo.Projector {
	return geo.NewProjector(geo.Projection{
		Center:    [2]float64{m.CenterLng, m.CenterLat},
		Scale:     m.Scale,
		Translate: [2]float64{m.TranslateX, m.TranslateY},
	}, m.PathPrecision, m.CanvasSize)
}

// sessionOptions maps config onto viewport behavior.
func sessionOptions(m config.MapConfig) mapview.SessionOptions {
	return mapview.SessionOptions{
		Viewport: viewport.Options{
			ZoomStep:   m.ZoomStep,
			MinZoom:    m.MinZoom,
			MaxZoom:    m.MaxZoom,
			Transition: time.Duration(m.TransitionMS) * time.Millisecond,
		},
		MinimapThreshold: m.MinimapThreshold,
	}
}

// newSource builds the configured boundary source. The returned cleanup releases
// any database pool and is never nil.
func newSource(ctx context.Context, c *config.Config) (geo.Source, func(), error) {
	noop := func() {}
	s := c.Source
	fields := geo.Fields{Name: s.NameField, ISO: s.ISOField}

	switch s.Kind {
	case "file":
		return geo.SourceForPath(s.Path, fields), noop, nil
	case "shapefile":
		return geo.ShapefileSource{Path: s.Path, Fields: fields}, noop, nil
	case "http":
		return geo.NewHTTPSource(s.URL, geo.HTTPOptions{
			Timeout:           time.Duration(s.TimeoutSecs) * time.Second,
			RequestsPerSecond: s.RequestsPerSecond,
			Fields:            fields,
		}), noop, nil
	case "postgres":
		pool, err := boundaryPool(ctx, c.Store.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return geo.PostgresSource{Pool: pool, Table: s.Table, Fields: fields}, pool.Close, nil
	default:
		return nil, noop, eris.Errorf("source: unknown kind %q", s.Kind)
	}
}

func boundaryPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, eris.New("source: no store.database_url configured")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "source: create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "source: ping database")
	}

	zap.L().Info("connected to boundary database")
	return pool, nil
}
