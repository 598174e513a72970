// Package selection holds the set of selected region names as an immutable value.
package selection

import (
	"encoding/json"
	"sort"
	"sync"
)

// Selection is an immutable set of region names. Every change returns a new value;
// the zero value is the empty selection.
type Selection struct {
	names map[string]struct{}
}

// New returns a selection holding names.
func New(names ...string) Selection {
	if len(names) == 0 {
		return Selection{}
	}
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return Selection{names: m}
}

// Has reports whether name is selected.
func (s Selection) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of selected names.
func (s Selection) Len() int { return len(s.names) }

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return len(s.names) == 0 }

// Names returns the selected names in sorted order.
func (s Selection) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both selections hold the same names.
func (s Selection) Equal(o Selection) bool {
	if len(s.names) != len(o.names) {
		return false
	}
	for n := range s.names {
		if !o.Has(n) {
			return false
		}
	}
	return true
}

// Toggle returns a copy with name removed if present and added otherwise. Names
// need not belong to a loaded region.
func (s Selection) Toggle(name string) Selection {
	m := make(map[string]struct{}, len(s.names)+1)
	for n := range s.names {
		m[n] = struct{}{}
	}
	if _, ok := m[name]; ok {
		delete(m, name)
	} else {
		m[name] = struct{}{}
	}
	return Selection{names: m}
}

// MarshalJSON encodes the selection as a sorted array of names.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// Clear returns the empty selection.
func (s Selection) Clear() Selection { return Selection{} }

// Toggle applies the toggle transition: a nil name clears the selection, any
// other name flips its membership.
func Toggle(s Selection, name *string) Selection {
	if name == nil {
		return s.Clear()
	}
	return s.Toggle(*name)
}

// Model owns the current selection and notifies subscribers whenever it is
// replaced. Subscribers receive the new value and never a mutable reference.
type Model struct {
	mu          sync.RWMutex
	current     Selection
	subscribers []func(Selection)
}

// NewModel creates a Model with an empty selection.
func NewModel() *Model { return &Model{} }

// Selection returns the current selection.
func (m *Model) Selection() Selection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnRegionSelect is the single selection callback: a region name toggles that
// region, nil clears everything.
func (m *Model) OnRegionSelect(name *string) Selection {
	m.mu.Lock()
	next := Toggle(m.current, name)
	m.current = next
	subs := append([]func(Selection){}, m.subscribers...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn to run after every change.
func (m *Model) Subscribe(fn func(Selection)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}
