package session

import (
	"log"
	"sync"
)

// Registry is the process-wide table of active sessions keyed by interview
// id. It is the only state shared across sessions; every insert and remove
// holds the registry mutex.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put registers s under its interview id. If a session for the same id is
// already active it is torn down, so at most one session per interview
// exists at any time.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	old := r.sessions[s.id]
	r.sessions[s.id] = s
	r.mu.Unlock()
	if old != nil && old != s {
		log.Printf("registry: replacing active session for interview %s", s.id)
		old.Teardown()
	}
}

// Get returns the active session for an interview id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// remove deletes the entry for id only if it still points at s, so a
// replaced session tearing down cannot evict its successor.
func (r *Registry) remove(id string, s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[id]; ok && cur == s {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
}
