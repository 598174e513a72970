package mapview

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/statmap/internal/tile"
)

// Load outcomes recorded by Metrics.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeStale    = "stale"
)

// Metrics records loader activity. A nil *Metrics records nothing.
type Metrics struct {
	Loads      *prometheus.CounterVec
	Regions    prometheus.Gauge
	Generation prometheus.Gauge
}

// NewMetrics creates the loader metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statmap_region_loads_total",
			Help: "Boundary loads by outcome (ok, fallback, stale)",
		}, []string{"outcome"}),
		Regions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statmap_regions",
			Help: "Number of regions in the applied region set",
		}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statmap_region_generation",
			Help: "Generation of the applied region set",
		}),
	}
	reg.MustRegister(m.Loads, m.Regions, m.Generation)
	return m
}

// RegisterCacheMetrics exposes tile cache hits and misses read from cache.Stats.
func RegisterCacheMetrics(reg prometheus.Registerer, cache *tile.Cache) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "statmap_tile_cache_hits_total",
			Help: "Tile cache hits",
		}, func() float64 { return float64(cache.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "statmap_tile_cache_misses_total",
			Help: "Tile cache misses",
		}, func() float64 { return float64(cache.Stats().Misses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "statmap_tile_cache_entries",
			Help: "Tile cache entries",
		}, func() float64 { return float64(cache.Stats().Entries) }),
	)
}

func (m *Metrics) observeLoad(outcome string) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeApplied(set *RegionSet) {
	if m == nil {
		return
	}
	m.Regions.Set(float64(len(set.Regions)))
	m.Generation.Set(float64(set.Generation))
}
