// Package events publishes page-state transitions to NATS so other
// services can follow what readers explore and compare.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/astrobio/progression/pkg/natsutil"
)

// Subjects.
const (
	SubjectNavigate = "astrobio.session.navigate"
	SubjectToggle   = "astrobio.session.toggle"
	SubjectCommit   = "astrobio.session.commit"
	SubjectReset    = "astrobio.session.reset"
	SubjectSearch   = "astrobio.dashboard.search"
)

// SessionEvent describes one topic-session transition.
type SessionEvent struct {
	SessionID string    `json:"sessionId"`
	Topic     string    `json:"topic"`
	Selected  []string  `json:"selected,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	At        time.Time `json:"at"`
}

// SearchEvent describes a dashboard search.
type SearchEvent struct {
	Category string    `json:"category"`
	Query    string    `json:"query"`
	Results  int       `json:"results"`
	At       time.Time `json:"at"`
}

// Publisher emits events. Implementations never block the caller on
// delivery failures.
type Publisher interface {
	Session(ctx context.Context, subject string, ev SessionEvent)
	Search(ctx context.Context, ev SearchEvent)
}

// Nop discards every event.
type Nop struct{}

// Session implements Publisher.
func (Nop) Session(context.Context, string, SessionEvent) {}

// Search implements Publisher.
func (Nop) Search(context.Context, SearchEvent) {}

// NATS publishes events as JSON with trace context in the headers.
type NATS struct {
	nc     natsutil.MsgPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewNATS creates a NATS publisher. nc is usually a *nats.Conn.
func NewNATS(nc natsutil.MsgPublisher, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{nc: nc, logger: logger, now: time.Now}
}

// Session publishes ev on subject.
func (p *NATS) Session(ctx context.Context, subject string, ev SessionEvent) {
	if ev.At.IsZero() {
		ev.At = p.now()
	}
	if err := natsutil.Publish(ctx, p.nc, subject, ev); err != nil {
		p.logger.Warn("events: publish failed", "subject", subject, "session", ev.SessionID, "error", err)
	}
}

// Search publishes ev on SubjectSearch.
func (p *NATS) Search(ctx context.Context, ev SearchEvent) {
	if ev.At.IsZero() {
		ev.At = p.now()
	}
	if err := natsutil.Publish(ctx, p.nc, SubjectSearch, ev); err != nil {
		p.logger.Warn("events: publish failed", "subject", SubjectSearch, "error", err)
	}
}
