package topic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/astrobio/progression/engine/articles"
	"github.com/google/uuid"
)

// Store keeps live sessions in memory. Nothing survives a restart.
type Store struct {
	fetcher articles.Fetcher
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store whose sessions fetch through fetcher.
func NewStore(fetcher articles.Fetcher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fetcher: fetcher, logger: logger, sessions: make(map[string]*Session)}
}

// Create registers a new session and navigates it to topic.
func (st *Store) Create(ctx context.Context, topic string) *Session {
	s := NewSession(uuid.NewString(), st.fetcher, st.logger)
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	s.Navigate(ctx, topic)
	return s
}

// Get returns the session for id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete closes and forgets a session. It reports whether id existed.
func (st *Store) Delete(id string) bool {
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
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep deletes sessions idle for longer than maxIdle and returns how many
// were removed.
func (st *Store) Sweep(now time.Time, maxIdle time.Duration) int {
	st.mu.RLock()
	var idle []string
	for id, s := range st.sessions {
		if now.Sub(s.lastActive()) > maxIdle {
			idle = append(idle, id)
		}
	}
	st.mu.RUnlock()

	n := 0
	for _, id := range idle {
		if st.Delete(id) {
			n++
		}
	}
	return n
}
