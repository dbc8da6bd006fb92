package registry

import "sync"

// MemoryRegistry is the in-process Registry.
type MemoryRegistry struct {
	sessions map[string]Session // userID -> session
	mu       sync.RWMutex
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]Session),
	}
}

func (r *MemoryRegistry) Register(userID string, s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[userID]
	r.sessions[userID] = s
	if prev != nil && prev.ID() == s.ID() {
		return nil
	}
	return prev
}

func (r *MemoryRegistry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

func (r *MemoryRegistry) UnregisterSession(userID string, s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[userID]
	if !ok || cur.ID() != s.ID() {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *MemoryRegistry) Lookup(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *MemoryRegistry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
