package mapview

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/statmap/internal/geo"
	"github.com/sells-group/statmap/internal/selection"
	"github.com/sells-group/statmap/internal/tile"
	"github.com/sells-group/statmap/internal/viewport"
)

// SessionOptions configures the viewport behavior of new sessions.
type SessionOptions struct {
	Viewport         viewport.Options
	MinimapThreshold float64
}

// Session is one user's session-local view of the shared region set: its own
// viewport, minimap, pointer surface, and selection. Nothing in a session is
// persisted.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	loader     *Loader
	window     *viewport.Window
	controller *viewport.Controller
	minimap    *viewport.Minimap
	selection  *selection.Model

	// pressed is the region under the last primary pointer-down, cleared on
	// pointer-up.
	pressed string
}

// MinimapView is the minimap part of a Snapshot.
type MinimapView struct {
	Visible bool          `json:"visible"`
	Rect    viewport.Rect `json:"rect"`
	Size    viewport.Size `json:"size"`
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID         string              `json:"id"`
	State      string              `json:"state"`
	Viewport   viewport.Viewport   `json:"viewport"`
	Transition viewport.Transition `json:"transition"`
	Minimap    MinimapView         `json:"minimap"`
	Selection  selection.Selection `json:"selection"`
	Generation uint64              `json:"generation"`
}

// NewSession creates a session over loader's region sets. The surface size
// defaults to the canonical box until the first Resize.
func NewSession(id string, loader *Loader, opts SessionOptions) *Session {
	canvas := loader.Projector().Canvas()
	win := viewport.NewWindow()
	ctrl := viewport.NewController(opts.Viewport, win)
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		loader:     loader,
		window:     win,
		controller: ctrl,
		minimap:    viewport.NewMinimap(ctrl, opts.MinimapThreshold, viewport.Size{Width: canvas, Height: canvas}),
		selection:  selection.NewModel(),
	}
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// ZoomBy changes the zoom factor; out-of-range results are ignored.
func (s *Session) ZoomBy(delta float64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.ZoomBy(delta)
	return s.snapshot()
}

// ResetView restores zoom 1 and zero pan.
func (s *Session) ResetView() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.ResetView()
	return s.snapshot()
}

// Resize records the surface pixel size used by minimap math.
func (s *Session) Resize(size viewport.Size) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minimap.Resize(size)
	return s.snapshot()
}

// MinimapClick recenters the viewport on normalized minimap point (nx, ny). It
// reports false, leaving the viewport alone, while the minimap is hidden.
func (s *Session) MinimapClick(nx, ny float64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.minimap.Click(nx, ny)
	return s.snapshot(), ok
}

// PointerDown starts a drag on the primary button and remembers which region,
// if any, is under the pointer.
func (s *Session) PointerDown(p viewport.Point, b viewport.Button) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pressed = ""
	if b == viewport.ButtonPrimary {
		if r, ok := s.regionAt(p); ok {
			s.pressed = r.Name
		}
	}
	s.controller.BeginDrag(p, b)
	return s.snapshot()
}

// PointerMove delivers a move event anywhere on the application surface.
func (s *Session) PointerMove(p viewport.Point) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.DispatchMove(p)
	return s.snapshot()
}

// PointerUp delivers an up event anywhere on the application surface, ending any
// drag. When the pointer went down and up on the same region the region is
// clicked, whether or not the map was dragged in between.
func (s *Session) PointerUp(p viewport.Point) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window.DispatchUp(p)

	pressed := s.pressed
	s.pressed = ""
	if pressed != "" {
		if r, ok := s.regionAt(p); ok && r.Name == pressed {
			s.selection.OnRegionSelect(&pressed)
		}
	}
	return s.snapshot()
}

// Select is the region-select callback: a name toggles that region, nil clears
// the selection.
func (s *Session) Select(name *string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.OnRegionSelect(name)
	return s.snapshot()
}

// Selection returns the current selection.
func (s *Session) Selection() selection.Selection {
	return s.selection.Selection()
}

// SubscribeSelection registers fn to run after every selection change.
func (s *Session) SubscribeSelection(fn func(selection.Selection)) {
	s.selection.Subscribe(fn)
}

// VisibleRegions returns the regions of the tiles overlapping the visible part of
// the canonical box, in load order.
func (s *Session) VisibleRegions() []geo.Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.loader.Current()
	minX, minY, maxX, maxY := s.minimap.VisibleBox(set.Index.Canvas())
	return set.Index.Query(tile.Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY})
}

// Close ends any drag in progress and releases its surface listeners.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.EndDrag()
}

// regionAt hit-tests the surface point p against the current region set.
// The fallback placeholder is never selectable.
func (s *Session) regionAt(p viewport.Point) (geo.Region, bool) {
	set := s.loader.Current()
	x, y := s.minimap.ToCanonical(p, set.Index.Canvas())
	r, ok := set.Index.HitTest(x, y)
	if !ok || r.Fallback {
		return geo.Region{}, false
	}
	zap.L().Debug("mapview: pointer over region",
		zap.String("session", s.ID),
		zap.String("region", r.Name),
	)
	return r, true
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:         s.ID,
		State:      s.controller.State().String(),
		Viewport:   s.controller.Viewport(),
		Transition: s.controller.Transition(),
		Minimap: MinimapView{
			Visible: s.minimap.Visible(),
			Rect:    s.minimap.Rect(),
			Size:    s.minimap.Size(),
		},
		Selection:  s.selection.Selection(),
		Generation: s.loader.Current().Generation,
	}
}
