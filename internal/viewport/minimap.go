package viewport

// Size is a surface size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a rectangle in normalized [0,1] minimap coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// ViewportRectangle returns the part of the canonical box visible through vp on a
// surface of the given size, as a fraction of the whole box.
func ViewportRectangle(vp Viewport, size Size) Rect {
	return Rect{
		X: -vp.Pan.X / vp.Zoom / size.Width,
		Y: -vp.Pan.Y / vp.Zoom / size.Height,
		W: 1 / vp.Zoom,
		H: 1 / vp.Zoom,
	}
}

// PanForClick returns the pan that centers normalized point (nx, ny) on the
// surface at the current zoom. It inverts ViewportRectangle.
func PanForClick(vp Viewport, size Size, nx, ny float64) Point {
	return Point{
		X: -(nx * size.Width * vp.Zoom) + size.Width/2,
		Y: -(ny * size.Height * vp.Zoom) + size.Height/2,
	}
}

// Minimap mirrors a Controller's viewport as an overview rectangle and turns
// overview clicks into pan changes.
type Minimap struct {
	controller *Controller
	threshold  float64
	size       Size
}

// NewMinimap creates a minimap shown once zoom exceeds threshold. The surface
// size starts at initial until the first Resize.
func NewMinimap(c *Controller, threshold float64, initial Size) *Minimap {
	return &Minimap{controller: c, threshold: threshold, size: initial}
}

// Resize records the main surface's pixel size. Non-positive sizes are ignored,
// and repeating the same size is harmless.
func (m *Minimap) Resize(s Size) bool {
	if s.Width <= 0 || s.Height <= 0 {
		return false
	}
	m.size = s
	return true
}

// Size returns the last recorded surface size.
func (m *Minimap) Size() Size { return m.size }

// Visible reports whether the minimap should be rendered.
func (m *Minimap) Visible() bool {
	return m.controller.Viewport().Zoom > m.threshold
}

// Rect returns the current viewport rectangle in normalized coordinates.
func (m *Minimap) Rect() Rect {
	return ViewportRectangle(m.controller.Viewport(), m.size)
}

// Click pans the main viewport so (nx, ny) becomes its center. Clicks while the
// minimap is hidden are ignored.
func (m *Minimap) Click(nx, ny float64) (Point, bool) {
	if !m.Visible() {
		return m.controller.Viewport().Pan, false
	}
	p := PanForClick(m.controller.Viewport(), m.size, nx, ny)
	m.controller.PanTo(p)
	return p, true
}

// VisibleBox returns the visible part of a canonical box of side canvas as
// min/max corners, for tile culling.
func (m *Minimap) VisibleBox(canvas float64) (minX, minY, maxX, maxY float64) {
	r := m.Rect()
	return r.X * canvas, r.Y * canvas, (r.X + r.W) * canvas, (r.Y + r.H) * canvas
}

// ToCanonical maps a surface pixel position to canonical coordinates under the
// current viewport.
func (m *Minimap) ToCanonical(p Point, canvas float64) (float64, float64) {
	vp := m.controller.Viewport()
	return (p.X - vp.Pan.X) / vp.Zoom * canvas / m.size.Width,
		(p.Y - vp.Pan.Y) / vp.Zoom * canvas / m.size.Height
}
