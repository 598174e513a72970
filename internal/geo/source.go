package geo

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// maxDatasetBytes caps how much of a boundary dataset is read into memory.
const maxDatasetBytes = 64 << 20

// Source fetches the raw boundary features for the map.
type Source interface {
	Fetch(ctx context.Context) ([]Feature, error)
}

// FileSource reads a GeoJSON FeatureCollection from disk.
type FileSource struct {
	Path   string
	Fields Fields
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context) ([]Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: fetch file")
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open %s", s.Path)
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(f, maxDatasetBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read %s", s.Path)
	}
	return DecodeFeatureCollection(data, s.Fields)
}

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	Client            *http.Client
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Fields            Fields
}

// HTTPSource downloads a GeoJSON FeatureCollection over HTTP.
// Requests are throttled so repeated reloads cannot hammer the dataset host.
type HTTPSource struct {
	url       string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	fields    Fields
}

// NewHTTPSource creates an HTTPSource for url.
func NewHTTPSource(url string, opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "statmap/1.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPSource{
		url:       url,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		userAgent: opts.UserAgent,
		fields:    opts.Fields,
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Feature, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geo: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geo: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geo: download boundaries")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geo: download returned status %d from %s", resp.StatusCode, s.url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return nil, eris.Wrap(err, "geo: read response body")
	}
	return DecodeFeatureCollection(data, s.fields)
}

// SourceForPath picks a file-backed source by extension: .shp files are read as
// shapefiles, everything else as GeoJSON.
func SourceForPath(path string, fields Fields) Source {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return ShapefileSource{Path: path, Fields: fields}
	}
	return FileSource{Path: path, Fields: fields}
}
