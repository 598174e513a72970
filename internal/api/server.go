// Package api exposes the map core over HTTP: the projected region set, grid
// tiles, and per-user interactive sessions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/statmap/internal/mapview"
	"github.com/sells-group/statmap/internal/tile"
	"github.com/sells-group/statmap/internal/viewport"
)

// Config configures the HTTP surface.
type Config struct {
	AllowedOrigins  []string
	ReloadPerMinute int
	Session         mapview.SessionOptions
}

// Server serves the map API.
type Server struct {
	loader   *mapview.Loader
	sessions *SessionStore
	tiles    *tile.Handler
	gatherer prometheus.Gatherer
	reloads  *rate.Limiter
	origins  []string
}

// NewServer wires the API around loader. Cached tiles from superseded region
// sets are dropped whenever a new set is applied. A nil cache disables tile
// caching; a nil gatherer disables /metrics.
func NewServer(loader *mapview.Loader, cache *tile.Cache, gatherer prometheus.Gatherer, cfg Config) *Server {
	if cache != nil {
		loader.Subscribe(func(set *mapview.RegionSet) {
			cache.InvalidateBefore(set.Generation)
		})
	}

	perMinute := cfg.ReloadPerMinute
	if perMinute < 1 {
		perMinute = 1
	}

	return &Server{
		loader:   loader,
		sessions: NewSessionStore(loader, cfg.Session),
		tiles:    tile.NewHandler("/api/tiles/", loader, cache),
		gatherer: gatherer,
		reloads:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		origins:  cfg.AllowedOrigins,
	}
}

// Sessions returns the server's session store.
func (s *Server) Sessions() *SessionStore { return s.sessions }

// Routes builds the HTTP route tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/map", s.handleMap)
		api.Post("/map/reload", s.handleReload)

		api.Get("/tiles/stats", s.tiles.StatsHandler)
		api.Handle("/tiles/*", s.tiles)

		api.Post("/sessions", s.handleCreateSession)
		api.Route("/sessions/{id}", func(sr chi.Router) {
			sr.Get("/", s.withSession(s.handleGetSession))
			sr.Delete("/", s.handleDeleteSession)
			sr.Post("/zoom", s.withSession(s.handleZoom))
			sr.Post("/reset", s.withSession(s.handleReset))
			sr.Post("/resize", s.withSession(s.handleResize))
			sr.Post("/minimap", s.withSession(s.handleMinimap))
			sr.Post("/select", s.withSession(s.handleSelect))
			sr.Post("/pointer/down", s.withSession(s.handlePointerDown))
			sr.Post("/pointer/move", s.withSession(s.handlePointerMove))
			sr.Post("/pointer/up", s.withSession(s.handlePointerUp))
			sr.Get("/visible", s.withSession(s.handleVisible))
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	set := s.loader.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"generation": set.Generation,
		"fallback":   set.Fallback,
		"sessions":   s.sessions.Len(),
	})
}

type mapResponse struct {
	ViewBox string `json:"view_box"`
	*mapview.RegionSet
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, mapResponse{
		ViewBox:   s.loader.Projector().ViewBox(),
		RegionSet: s.loader.Current(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if !s.reloads.Allow() {
		writeError(w, http.StatusTooManyRequests, "reload rate limit exceeded")
		return
	}

	res, err := s.loader.Reload(r.Context())
	body := map[string]any{
		"outcome":    res.Outcome,
		"generation": res.Set.Generation,
		"regions":    len(res.Set.Regions),
		"fallback":   res.Set.Fallback,
	}
	if err != nil {
		body["error"] = err.Error()
		writeJSON(w, http.StatusBadGateway, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	zap.L().Info("api: session created", zap.String("session", sess.ID))
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *mapview.Session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, sess *mapview.Session) {
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request, sess *mapview.Session) {
	var req struct {
		Delta float64 `json:"delta"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, sess.ZoomBy(req.Delta))
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request, sess *mapview.Session) {
	writeJSON(w, http.StatusOK, sess.ResetView())
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request, sess *mapview.Session) {
	var req viewport.Size
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, sess.Resize(req))
}

func (s *Server) handleMinimap(w http.ResponseWriter, r *http.Request, sess *mapview.Session) {
	var req struct {
		NX float64 `json:"nx"`
		NY float64 `json:"ny"`
	}
	if !decode(w, r, &req) {
		return
	}
	snap, ok := sess.MinimapClick(req.NX, req.NY)
	if !ok {
		writeError(w, http.StatusConflict, "minimap is not visible at this zoom")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, sess *mapview.Session) {
	var req struct {
		Name *string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, sess.Select(req.Name))
}

type pointerRequest struct {
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Button viewport.Button `json:"button"`
}

func (p pointerRequest) point() viewport.Point { return viewport.Point{X: p.X, Y: p.Y} }

func (s *Server) handlePointerDown(w http.ResponseWriter, r *http.Request, sess *mapview.Session) {
	var req pointerRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, sess.PointerDown(req.point(), req.Button))
}

func (s *Server) handlePointerMove(w http.ResponseWriter, r *http.Request, sess *mapview.Session) {
	var req pointerRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, sess.PointerMove(req.point()))
}

func (s *Server) handlePointerUp(w http.ResponseWriter, r *http.Request, sess *mapview.Session) {
	var req pointerRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, sess.PointerUp(req.point()))
}

func (s *Server) handleVisible(w http.ResponseWriter, _ *http.Request, sess *mapview.Session) {
	regions := sess.VisibleRegions()
	ids := make([]string, len(regions))
	for i, reg := range regions {
		ids[i] = reg.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{"region_ids": ids})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request at debug level once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
