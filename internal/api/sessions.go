package api

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sells-group/statmap/internal/mapview"
)

// SessionStore keeps in-memory map sessions keyed by random id. Sessions are
// never persisted.
type SessionStore struct {
	loader *mapview.Loader
	opts   mapview.SessionOptions

	mu       sync.RWMutex
	sessions map[string]*mapview.Session
}

// NewSessionStore creates an empty store whose sessions view loader's region sets.
func NewSessionStore(loader *mapview.Loader, opts mapview.SessionOptions) *SessionStore {
	return &SessionStore{
		loader:   loader,
		opts:     opts,
		sessions: make(map[string]*mapview.Session),
	}
}

// Create starts a new session.
func (st *SessionStore) Create() *mapview.Session {
	s := mapview.NewSession(uuid.NewString(), st.loader, st.opts)

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given id.
func (st *SessionStore) Get(id string) (*mapview.Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete closes and removes a session. It reports whether the session existed.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
