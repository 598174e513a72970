package viewport

import "sync"

// PointerListener receives pointer events delivered to a Surface.
type PointerListener interface {
	PointerMove(p Point)
	PointerUp(p Point)
}

// Surface is an area that delivers pointer events to registered listeners. The
// returned function removes the listener and is safe to call more than once.
type Surface interface {
	AddPointerListener(l PointerListener) (remove func())
}

// Window is the application-wide pointer surface. Listeners registered here keep
// receiving events after the pointer leaves the map element.
type Window struct {
	mu        sync.Mutex
	listeners map[uint64]PointerListener
	nextID    uint64
}

// NewWindow creates an empty Window.
func NewWindow() *Window {
	return &Window{listeners: make(map[uint64]PointerListener)}
}

// AddPointerListener implements Surface.
func (w *Window) AddPointerListener(l PointerListener) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered listeners.
func (w *Window) Listeners() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// DispatchMove delivers a pointer-move event to every listener.
func (w *Window) DispatchMove(p Point) {
	for _, l := range w.snapshot() {
		l.PointerMove(p)
	}
}

// DispatchUp delivers a pointer-up event to every listener.
func (w *Window) DispatchUp(p Point) {
	for _, l := range w.snapshot() {
		l.PointerUp(p)
	}
}

// snapshot lets listeners remove themselves while an event is being delivered.
func (w *Window) snapshot() []PointerListener {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]PointerListener, 0, len(w.listeners))
	for _, l := range w.listeners {
		out = append(out, l)
	}
	return out
}
