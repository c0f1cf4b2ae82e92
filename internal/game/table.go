package game

import (
	"sync"
	"time"
)

// Table is the active session registry, one session per game id.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Create registers the session. Returns false when the game id already
// exists (the existing session is kept).
func (t *Table) Create(s *Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.sessions[s.GameID]; exists {
		return false
	}
	t.sessions[s.GameID] = s
	return true
}

func (t *Table) Get(gameID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[gameID]
	return s, ok
}

// Touch refreshes the session's activity timestamp.
func (t *Table) Touch(gameID string) {
	t.mu.Lock()
	s, ok := t.sessions[gameID]
	t.mu.Unlock()
	if ok {
		s.touch()
	}
}

func (t *Table) Remove(gameID string) {
	t.mu.Lock()
	delete(t.sessions, gameID)
	t.mu.Unlock()
}

// ListActive snapshots sessions updated within the window.
func (t *Table) ListActive(window time.Duration) []*Session {
	now := time.Now()
	t.mu.Lock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		if now.Sub(s.lastSeen()) <= window {
			out = append(out, s)
		}
	}
	t.mu.Unlock()
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
