// Package topic implements the topic page state machine: the article list
// fetched for a topic, a bounded selection over it, and the committed
// snapshot that drives the insight or comparison panel.
package topic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/astrobio/progression/engine/articles"
	"github.com/astrobio/progression/engine/domain"
)

// SessionState is an immutable copy of a session taken under its lock.
type SessionState struct {
	ID         string           `json:"id"`
	Topic      string           `json:"topic"`
	Generation uint64           `json:"generation"`
	Loading    bool             `json:"loading"`
	Articles   []domain.Article `json:"articles"`
	Selected   []string         `json:"selected"`
	Action     Action           `json:"action,omitempty"`
	Mode       Mode             `json:"mode"`
	Snapshot   []string         `json:"snapshot"`
	// Stale is set when the committed snapshot no longer matches the
	// live selection.
	Stale     bool      `json:"stale"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is one topic page. Transitions are serialized by an internal
// mutex so concurrent HTTP requests see them in a single order.
type Session struct {
	id      string
	fetcher articles.Fetcher
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	topic     string
	articles  []domain.Article
	selection Selection
	mode      Mode
	snapshot  []string
	gen       uint64
	loading   bool
	cancel    context.CancelFunc
	ready     chan struct{}
	updatedAt time.Time
}

// NewSession creates an idle session with no topic. Call Navigate to load one.
func NewSession(id string, fetcher articles.Fetcher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ready := make(chan struct{})
	close(ready)
	s := &Session{
		id:      id,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		mode:    ModeNone,
		ready:   ready,
	}
	s.updatedAt = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Navigate switches to topic: it clears the selection, mode and snapshot,
// cancels any in-flight fetch and starts a new one. Only the fetch started
// by the latest Navigate may write the article list. ctx supplies values
// such as trace context; its cancellation does not stop the fetch.
func (s *Session) Navigate(ctx context.Context, topic string) uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.topic = topic
	s.articles = nil
	s.selection = Selection{}
	s.mode = ModeNone
	s.snapshot = nil
	s.loading = true
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	ready := make(chan struct{})
	s.ready = ready
	s.updatedAt = s.now()
	s.mu.Unlock()

	go s.fetch(fetchCtx, gen, topic, ready)
	return gen
}

func (s *Session) fetch(ctx context.Context, gen uint64, topic string, ready chan struct{}) {
	defer close(ready)

	list, err := s.fetcher.Fetch(ctx, topic)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("topic fetch superseded", "session", s.id, "topic", topic, "generation", gen)
		} else {
			s.logger.Warn("topic fetch failed, showing no articles", "session", s.id, "topic", topic, "err", err)
		}
		list = []domain.Article{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("discarding stale topic fetch", "session", s.id, "topic", topic, "generation", gen, "current", s.gen)
		return
	}
	if list == nil {
		list = []domain.Article{}
	}
	s.articles = list
	s.loading = false
	s.cancel = nil
	s.updatedAt = s.now()
}

// Ready returns a channel that is closed once the current generation's
// fetch has landed.
func (s *Session) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Wait blocks until the current fetch lands or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Toggle flips id in the selection; see Selection.Toggle. Mode and snapshot
// are left alone. An id that is not in the current article list fails with
// domain.ErrUnknownArticle, so nothing can be selected while a fetch is
// still loading.
func (s *Session) Toggle(id string) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := domain.FindArticle(s.articles, id); !ok {
		return s.selection, fmt.Errorf("topic %q: %q: %w", s.topic, id, domain.ErrUnknownArticle)
	}
	s.selection = s.selection.Toggle(id)
	s.updatedAt = s.now()
	return s.selection, nil
}

// Commit snapshots the current selection and sets Mode to Insight for one
// id or Compare for two. With nothing selected it does nothing and returns
// false.
func (s *Session) Commit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.selection.Len() {
	case 1:
		s.mode = ModeInsight
	case 2:
		s.mode = ModeCompare
	default:
		return false
	}
	s.snapshot = s.selection.IDs()
	s.updatedAt = s.now()
	return true
}

// Reset clears the mode and snapshot but keeps the selection.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeNone
	s.snapshot = nil
	s.updatedAt = s.now()
}

// Close cancels any in-flight fetch.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// State returns a copy of the session.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionState{
		ID:         s.id,
		Topic:      s.topic,
		Generation: s.gen,
		Loading:    s.loading,
		Articles:   make([]domain.Article, len(s.articles)),
		Selected:   s.selection.IDs(),
		Action:     actionFor(s.selection.Len()),
		Mode:       s.mode,
		Snapshot:   make([]string, len(s.snapshot)),
		UpdatedAt:  s.updatedAt,
	}
	copy(st.Articles, s.articles)
	copy(st.Snapshot, s.snapshot)
	st.Stale = s.mode != ModeNone && !s.selection.Equal(s.snapshot)
	return st
}

// lastActive is used by the store's idle sweep.
func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
