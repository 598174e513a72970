package tile

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/statmap/internal/geo"
)

// Provider exposes the index of the currently applied region set together with
// the generation that produced it.
type Provider interface {
	CurrentIndex() (uint64, *Index)
}

// Payload is the JSON body of one served tile.
type Payload struct {
	Generation uint64       `json:"generation"`
	GridX      int          `json:"grid_x"`
	GridY      int          `json:"grid_y"`
	Regions    []geo.Region `json:"regions"`
}

// Handler serves grid tiles as JSON over HTTP.
type Handler struct {
	prefix   string
	provider Provider
	cache    *Cache
}

// NewHandler creates a tile handler for paths of the form {prefix}{x}/{y}[.json].
// A nil cache disables caching.
func NewHandler(prefix string, provider Provider, cache *Cache) *Handler {
	return &Handler{prefix: prefix, provider: provider, cache: cache}
}

// ServeHTTP handles requests at {prefix}{x}/{y}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, h.prefix)
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		http.Error(w, "invalid tile path", http.StatusBadRequest)
		return
	}

	x, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "invalid x coordinate", http.StatusBadRequest)
		return
	}
	y, err := strconv.Atoi(strings.TrimSuffix(parts[1], ".json"))
	if err != nil {
		http.Error(w, "invalid y coordinate", http.StatusBadRequest)
		return
	}

	gen, ix := h.provider.CurrentIndex()
	if ix == nil {
		http.Error(w, "map not loaded", http.StatusServiceUnavailable)
		return
	}
	if x < 0 || y < 0 || x >= ix.GridSize() || y >= ix.GridSize() {
		http.Error(w, "tile out of range", http.StatusNotFound)
		return
	}

	if h.cache != nil {
		if cached := h.cache.Get(gen, x, y); cached != nil {
			writeTile(w, cached, "hit")
			return
		}
	}

	body, err := json.Marshal(Payload{
		Generation: gen,
		GridX:      x,
		GridY:      y,
		Regions:    ix.TileRegions(x, y),
	})
	if err != nil {
		zap.L().Error("tile: encode failed",
			zap.Uint64("generation", gen),
			zap.Int("x", x), zap.Int("y", y),
			zap.Error(err),
		)
		http.Error(w, "tile encoding failed", http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		h.cache.Put(gen, x, y, body)
	}
	writeTile(w, body, "miss")
}

// StatsHandler returns cache statistics as JSON.
func (h *Handler) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.cache == nil {
		_, _ = w.Write([]byte(`{"enabled":false}`))
		return
	}
	_ = json.NewEncoder(w).Encode(h.cache.Stats())
}

func writeTile(w http.ResponseWriter, body []byte, cacheState string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheState)
	_, _ = w.Write(body)
}
