// Package viewport owns the zoom and pan transform applied on top of the canonical
// coordinate box, the drag state machine that moves it, and the minimap overview
// that mirrors it.
package viewport

import (
	"math"
	"time"
)

// Point is a position in surface pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Button identifies the pointer button of a pointer-down event.
type Button int

// Pointer buttons, numbered like DOM MouseEvent.button.
const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// State is the interaction mode of a Controller.
type State int

// Interaction modes.
const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Viewport is the zoom factor and pan offset applied to the canonical box.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`
}

// Transition tells the renderer how to move to the current viewport: eased over
// Duration for discrete changes, immediate while dragging.
type Transition struct {
	Animated bool          `json:"animated"`
	Duration time.Duration `json:"duration"`
}

// Options bounds and steps the zoom factor.
type Options struct {
	ZoomStep   float64
	MinZoom    float64 // exclusive
	MaxZoom    float64 // exclusive
	Transition time.Duration
}

// DefaultOptions returns a 0.2 zoom step inside the open interval (0.5, 3.0).
func DefaultOptions() Options {
	return Options{
		ZoomStep:   0.2,
		MinZoom:    0.5,
		MaxZoom:    3.0,
		Transition: 300 * time.Millisecond,
	}
}

// zoomPrecision removes binary rounding noise from repeated step additions so
// bounds compare against the decimal value a user sees.
const zoomPrecision = 1e9

// Controller is the idle/dragging state machine over one Viewport. It is not safe
// for concurrent use; callers serialize events the way a UI event loop does.
type Controller struct {
	opts       Options
	vp         Viewport
	state      State
	ref        Point
	transition Transition

	surface Surface
	detach  func()
}

// NewController starts idle at zoom 1 with zero pan. Drag move and up events are
// taken from surface while a drag is active; a nil surface means callers deliver
// them through UpdateDrag and EndDrag directly.
func NewController(opts Options, surface Surface) *Controller {
	return &Controller{
		opts:    opts,
		vp:      Viewport{Zoom: 1},
		surface: surface,
	}
}

// Viewport returns the current zoom and pan.
func (c *Controller) Viewport() Viewport { return c.vp }

// State returns the current interaction mode.
func (c *Controller) State() State { return c.state }

// Transition returns how the last viewport change should be rendered.
func (c *Controller) Transition() Transition { return c.transition }

// Options returns the zoom bounds in effect.
func (c *Controller) Options() Options { return c.opts }

// InRange reports whether zoom lies strictly inside the configured bounds.
func (c *Controller) InRange(zoom float64) bool {
	return zoom > c.opts.MinZoom && zoom < c.opts.MaxZoom
}

// Restore replaces the viewport wholesale, e.g. when resuming a session. A zoom
// outside the bounds is refused.
func (c *Controller) Restore(vp Viewport) bool {
	if !c.InRange(vp.Zoom) {
		return false
	}
	c.vp = vp
	c.transition = Transition{}
	return true
}

// ZoomBy adds delta to the zoom factor. A result outside the open bounds is
// discarded and the viewport is left unchanged.
func (c *Controller) ZoomBy(delta float64) bool {
	next := math.Round((c.vp.Zoom+delta)*zoomPrecision) / zoomPrecision
	if !c.InRange(next) {
		return false
	}
	c.vp.Zoom = next
	c.transition = c.animated()
	return true
}

// ZoomIn steps the zoom factor up by one increment.
func (c *Controller) ZoomIn() bool { return c.ZoomBy(c.opts.ZoomStep) }

// ZoomOut steps the zoom factor down by one increment.
func (c *Controller) ZoomOut() bool { return c.ZoomBy(-c.opts.ZoomStep) }

// ResetView returns to zoom 1 and zero pan with an animated transition.
func (c *Controller) ResetView() {
	c.vp = Viewport{Zoom: 1}
	c.transition = c.animated()
}

// PanTo moves the pan offset with an animated transition, as minimap navigation does.
func (c *Controller) PanTo(p Point) {
	c.vp.Pan = p
	c.transition = c.animated()
}

// BeginDrag starts a drag on a primary-button pointer-down, recording the pointer
// position relative to the current pan. Other buttons, or a pointer-down while
// already dragging, are ignored.
func (c *Controller) BeginDrag(p Point, b Button) bool {
	if b != ButtonPrimary || c.state == Dragging {
		return false
	}
	c.state = Dragging
	c.ref = p.Sub(c.vp.Pan)
	if c.surface != nil {
		c.detach = c.surface.AddPointerListener(c)
	}
	return true
}

// UpdateDrag moves the pan so the grabbed point follows the pointer. It is a no-op
// when idle.
func (c *Controller) UpdateDrag(p Point) bool {
	if c.state != Dragging {
		return false
	}
	c.vp.Pan = p.Sub(c.ref)
	c.transition = Transition{}
	return true
}

// EndDrag returns to idle and releases the surface listeners.
func (c *Controller) EndDrag() bool {
	if c.state != Dragging {
		return false
	}
	c.state = Idle
	c.ref = Point{}
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
	return true
}

// PointerMove implements PointerListener.
func (c *Controller) PointerMove(p Point) { c.UpdateDrag(p) }

// PointerUp implements PointerListener.
func (c *Controller) PointerUp(Point) { c.EndDrag() }

// animated marks a non-drag change. It is animated whatever the configured
// duration; a zero Duration leaves the easing length to the renderer.
func (c *Controller) animated() Transition {
	return Transition{Animated: true, Duration: c.opts.Transition}
}
