package domain

import (
	"sync"
	"time"
)

// Session describes one authenticated realtime connection.
type Session struct {
	ID           string
	UserID       string
	Email        string
	ConnectedAt  time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id, userID, email string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		UserID:       userID,
		Email:        email,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now().UTC()
}

func (s *Session) GetLastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastActiveAt
}
