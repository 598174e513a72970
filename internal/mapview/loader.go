// Package mapview ties boundary loading, tile indexing, viewport control, and
// selection into interactive map sessions.
package mapview

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statmap/internal/geo"
	"github.com/sells-group/statmap/internal/tile"
)

// RegionSet is one applied, immutable set of regions with its tile index.
// Generation numbers order sets by the time their load was issued.
type RegionSet struct {
	Generation uint64       `json:"generation"`
	Regions    []geo.Region `json:"regions"`
	Fallback   bool         `json:"fallback"`
	LoadedAt   time.Time    `json:"loaded_at"`

	Index *tile.Index `json:"-"`
}

// Result describes the outcome of one Reload.
type Result struct {
	Outcome string
	Set     *RegionSet // the set current after this reload
}

// Loader fetches and projects boundary data off the interactive path and
// publishes the latest-issued load's result.
type Loader struct {
	source    geo.Source
	projector *geo.Projector
	gridSize  int
	metrics   *Metrics
	now       func() time.Time

	mu          sync.RWMutex
	issued      uint64
	current     *RegionSet
	subscribers []func(*RegionSet)
}

// NewLoader creates a Loader that serves the fallback region set until the first
// successful Reload.
func NewLoader(src geo.Source, pr *geo.Projector, gridSize int, m *Metrics) *Loader {
	l := &Loader{
		source:    src,
		projector: pr,
		gridSize:  gridSize,
		metrics:   m,
		now:       time.Now,
	}
	l.current = l.newSet(0, pr.FallbackRegions(), true)
	return l
}

// Current returns the applied region set. The pointer changes exactly when a new
// set is applied.
func (l *Loader) Current() *RegionSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// CurrentIndex implements tile.Provider.
func (l *Loader) CurrentIndex() (uint64, *tile.Index) {
	set := l.Current()
	return set.Generation, set.Index
}

// Projector returns the projector applied to every load.
func (l *Loader) Projector() *geo.Projector { return l.projector }

// Subscribe registers fn to run after each applied region set.
func (l *Loader) Subscribe(fn func(*RegionSet)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Reload fetches and projects the boundary dataset. Its result is applied only if
// no reload issued after it has already been applied, so concurrent reloads
// settle on the latest-issued one regardless of completion order. A failed fetch
// or an empty result applies the fallback set; the fetch error is still returned.
func (l *Loader) Reload(ctx context.Context) (Result, error) {
	log := zap.L().With(zap.String("component", "mapview.loader"))

	l.mu.Lock()
	l.issued++
	seq := l.issued
	l.mu.Unlock()

	start := l.now()
	var (
		regions  []geo.Region
		fallback bool
		fetchErr error
	)
	features, err := l.source.Fetch(ctx)
	switch {
	case err != nil:
		fetchErr = eris.Wrap(err, "mapview: fetch boundaries")
		log.Error("mapview: boundary fetch failed, using fallback",
			zap.Uint64("generation", seq),
			zap.Error(err),
		)
		regions, fallback = l.projector.FallbackRegions(), true
	default:
		regions = l.projector.Project(features)
		if len(regions) == 0 {
			log.Warn("mapview: boundary dataset produced no regions, using fallback",
				zap.Uint64("generation", seq),
				zap.Int("features", len(features)),
			)
			regions, fallback = l.projector.FallbackRegions(), true
		}
	}

	l.mu.Lock()
	if seq <= l.current.Generation {
		current := l.current
		l.mu.Unlock()
		log.Debug("mapview: discarding stale load",
			zap.Uint64("generation", seq),
			zap.Uint64("applied", current.Generation),
		)
		l.metrics.observeLoad(OutcomeStale)
		return Result{Outcome: OutcomeStale, Set: current}, fetchErr
	}
	set := l.newSet(seq, regions, fallback)
	l.current = set
	subs := append([]func(*RegionSet){}, l.subscribers...)
	l.mu.Unlock()

	outcome := OutcomeOK
	if fallback {
		outcome = OutcomeFallback
	}
	l.metrics.observeLoad(outcome)
	l.metrics.observeApplied(set)
	log.Info("mapview: region set applied",
		zap.Uint64("generation", seq),
		zap.Int("regions", len(regions)),
		zap.Bool("fallback", fallback),
		zap.Duration("elapsed", l.now().Sub(start)),
	)

	for _, fn := range subs {
		fn(set)
	}
	return Result{Outcome: outcome, Set: set}, fetchErr
}

// newSet builds the tile index for a region set. It is the only place an index is
// built.
func (l *Loader) newSet(gen uint64, regions []geo.Region, fallback bool) *RegionSet {
	return &RegionSet{
		Generation: gen,
		Regions:    regions,
		Fallback:   fallback,
		LoadedAt:   l.now(),
		Index:      tile.Build(regions, l.gridSize, l.projector.Canvas()),
	}
}
