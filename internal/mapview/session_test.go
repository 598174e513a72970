package mapview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/statmap/internal/selection"
	"github.com/sells-group/statmap/internal/viewport"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	l := NewLoader(staticSource(eastAfrica()), testProjector(), 4, nil)
	_, err := l.Reload(context.Background())
	require.NoError(t, err)
	return NewSession("s1", l, SessionOptions{
		Viewport:         viewport.DefaultOptions(),
		MinimapThreshold: 2.5,
	})
}

func pt(x, y float64) viewport.Point { return viewport.Point{X: x, Y: y} }

func TestSession_ClickTogglesRegion(t *testing.T) {
	s := testSession(t)

	s.PointerDown(pt(700, 500), viewport.ButtonPrimary)
	snap := s.PointerUp(pt(700, 500))
	assert.Equal(t, []string{"Kenya"}, snap.Selection.Names())
	assert.Equal(t, "idle", snap.State)

	s.PointerDown(pt(300, 500), viewport.ButtonPrimary)
	snap = s.PointerUp(pt(300, 500))
	assert.Equal(t, []string{"Kenya", "Uganda"}, snap.Selection.Names())

	s.PointerDown(pt(700, 500), viewport.ButtonPrimary)
	snap = s.PointerUp(pt(700, 500))
	assert.Equal(t, []string{"Uganda"}, snap.Selection.Names())
}

// A zero-distance drag is also a click and toggles the region. There is no
// movement threshold.
func TestSession_ZeroDistanceDragStillToggles(t *testing.T) {
	s := testSession(t)

	down := s.PointerDown(pt(700, 500), viewport.ButtonPrimary)
	assert.Equal(t, "dragging", down.State)

	moved := s.PointerMove(pt(700, 500))
	assert.Equal(t, viewport.Point{}, moved.Viewport.Pan)

	up := s.PointerUp(pt(700, 500))
	assert.Equal(t, "idle", up.State)
	assert.True(t, up.Selection.Has("Kenya"))
}

// The grabbed point follows the pointer, so a drag that starts on a region ends
// over the same region and registers as a click.
func TestSession_DragOverSameRegionToggles(t *testing.T) {
	s := testSession(t)

	s.PointerDown(pt(700, 500), viewport.ButtonPrimary)
	s.PointerMove(pt(740, 520))
	up := s.PointerUp(pt(750, 520))

	assert.Equal(t, viewport.Point{X: 40, Y: 20}, up.Viewport.Pan)
	assert.True(t, up.Selection.Has("Kenya"))
}

func TestSession_DragFromEmptySpaceDoesNotSelect(t *testing.T) {
	s := testSession(t)

	s.PointerDown(pt(50, 50), viewport.ButtonPrimary)
	s.PointerMove(pt(700, 500))
	up := s.PointerUp(pt(700, 500))

	assert.Equal(t, viewport.Point{X: 650, Y: 450}, up.Viewport.Pan)
	assert.True(t, up.Selection.Empty())
}

func TestSession_SecondaryButtonNeitherDragsNorSelects(t *testing.T) {
	s := testSession(t)

	down := s.PointerDown(pt(700, 500), viewport.ButtonSecondary)
	assert.Equal(t, "idle", down.State)
	up := s.PointerUp(pt(700, 500))
	assert.True(t, up.Selection.Empty())
}

func TestSession_PointerUpOutsideMapEndsDrag(t *testing.T) {
	s := testSession(t)

	s.PointerDown(pt(50, 50), viewport.ButtonPrimary)
	s.PointerMove(pt(-400, 3000))
	up := s.PointerUp(pt(-400, 3000))

	assert.Equal(t, "idle", up.State)
	assert.Equal(t, viewport.Point{X: -450, Y: 2950}, up.Viewport.Pan)
}

func TestSession_SelectAndClear(t *testing.T) {
	s := testSession(t)

	var changes []selection.Selection
	s.SubscribeSelection(func(sel selection.Selection) { changes = append(changes, sel) })

	name := "Atlantis"
	snap := s.Select(&name)
	assert.True(t, snap.Selection.Has("Atlantis"))

	snap = s.Select(nil)
	assert.True(t, snap.Selection.Empty())
	assert.Len(t, changes, 2)
	assert.True(t, s.Selection().Empty())
}

func TestSession_ZoomResetAndMinimap(t *testing.T) {
	s := testSession(t)

	snap := s.ZoomBy(1.0)
	assert.Equal(t, 2.0, snap.Viewport.Zoom)
	assert.False(t, snap.Minimap.Visible)

	snap = s.ZoomBy(0.6)
	assert.Equal(t, 2.6, snap.Viewport.Zoom)
	assert.True(t, snap.Minimap.Visible)

	snap = s.ZoomBy(0.6)
	assert.Equal(t, 2.6, snap.Viewport.Zoom, "3.2 is out of range")

	snap, ok := s.MinimapClick(0.5, 0.5)
	require.True(t, ok)
	cx, cy := snap.Minimap.Rect.Center()
	assert.InDelta(t, 0.5, cx, 1e-9)
	assert.InDelta(t, 0.5, cy, 1e-9)

	snap = s.ResetView()
	assert.Equal(t, viewport.Viewport{Zoom: 1}, snap.Viewport)
	assert.True(t, snap.Transition.Animated)
}

func TestSession_Resize(t *testing.T) {
	s := testSession(t)
	snap := s.Resize(viewport.Size{Width: 640, Height: 480})
	assert.Equal(t, viewport.Size{Width: 640, Height: 480}, snap.Minimap.Size)

	snap = s.Resize(viewport.Size{Width: -1, Height: 480})
	assert.Equal(t, viewport.Size{Width: 640, Height: 480}, snap.Minimap.Size)

	// Hit-testing follows the recorded size: Kenya's center is now at (448, 240).
	s.PointerDown(pt(448, 240), viewport.ButtonPrimary)
	up := s.PointerUp(pt(448, 240))
	assert.True(t, up.Selection.Has("Kenya"))
}

func TestSession_VisibleRegions(t *testing.T) {
	s := testSession(t)
	assert.Len(t, s.VisibleRegions(), 2)

	s.ZoomBy(1.6)
	_, ok := s.MinimapClick(0.2, 0.5)
	require.True(t, ok)

	visible := s.VisibleRegions()
	require.Len(t, visible, 1)
	assert.Equal(t, "Uganda", visible[0].Name)
}

func TestSession_MinimapClickWhileHidden(t *testing.T) {
	s := testSession(t)
	s.ZoomBy(1.0)

	snap, ok := s.MinimapClick(0.2, 0.5)
	assert.False(t, ok)
	assert.False(t, snap.Minimap.Visible)
	assert.Equal(t, viewport.Viewport{Zoom: 2}, snap.Viewport)
}

func TestSession_FallbackNotSelectable(t *testing.T) {
	l := NewLoader(staticSource(nil), testProjector(), 4, nil)
	s := NewSession("s2", l, SessionOptions{Viewport: viewport.DefaultOptions(), MinimapThreshold: 2.5})

	s.PointerDown(pt(500, 500), viewport.ButtonPrimary)
	up := s.PointerUp(pt(500, 500))
	assert.True(t, up.Selection.Empty())
	assert.Equal(t, uint64(0), up.Generation)
}

func TestSession_CloseEndsDrag(t *testing.T) {
	s := testSession(t)
	s.PointerDown(pt(10, 10), viewport.ButtonPrimary)
	s.Close()
	assert.Equal(t, "idle", s.Snapshot().State)
}
