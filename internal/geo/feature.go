// Package geo turns raw boundary features into projected, selectable map regions.
package geo

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Feature is one boundary record as fetched from a source, before projection.
type Feature struct {
	Name     string
	ISOCode  string
	Geometry geom.T
}

// Fields names the properties (or columns) that carry a feature's name and ISO code.
// A configured name is tried before the common spellings.
type Fields struct {
	Name string
	ISO  string
}

var (
	defaultNameKeys = []string{"name", "NAME"}
	defaultISOKeys  = []string{"isoCode", "iso_code", "ISO_A3"}
)

func (f Fields) nameKeys() []string { return withPreferred(f.Name, defaultNameKeys) }

func (f Fields) isoKeys() []string { return withPreferred(f.ISO, defaultISOKeys) }

func withPreferred(key string, defaults []string) []string {
	if key == "" {
		return defaults
	}
	return append([]string{key}, defaults...)
}

// NormalizeName returns the join key for a region name: trimmed and NFC-composed so
// "Côte d'Ivoire" compares equal regardless of how the source encoded the accent.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// DecodeFeatureCollection parses a GeoJSON FeatureCollection, reading names and ISO
// codes from the properties named by fields.
// Only an unreadable envelope is an error. Individual features that fail to decode or
// carry no name are skipped and logged; geometry validity is checked at projection time.
func DecodeFeatureCollection(data []byte, fields Fields) ([]Feature, error) {
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "geo: decode feature collection")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("geo: expected FeatureCollection, got %q", fc.Type)
	}

	log := zap.L().With(zap.String("component", "geo.decode"))

	features := make([]Feature, 0, len(fc.Features))
	var skipped int
	for i, raw := range fc.Features {
		var gf geojson.Feature
		if err := json.Unmarshal(raw, &gf); err != nil {
			log.Debug("geo: skipping undecodable feature", zap.Int("index", i), zap.Error(err))
			skipped++
			continue
		}

		name := NormalizeName(stringProperty(gf.Properties, fields.nameKeys()...))
		if name == "" {
			log.Debug("geo: skipping feature without name", zap.Int("index", i))
			skipped++
			continue
		}

		features = append(features, Feature{
			Name:     name,
			ISOCode:  strings.TrimSpace(stringProperty(gf.Properties, fields.isoKeys()...)),
			Geometry: gf.Geometry,
		})
	}

	if skipped > 0 {
		log.Debug("geo: skipped features", zap.Int("skipped", skipped), zap.Int("kept", len(features)))
	}

	return features, nil
}

// stringProperty returns the first non-empty string value among keys.
func stringProperty(props map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
