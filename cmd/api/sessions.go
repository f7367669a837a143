package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/astrobio/progression/engine/compare"
	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/engine/events"
	"github.com/astrobio/progression/engine/topic"
	"github.com/astrobio/progression/pkg/metrics"
)

type topicRequest struct {
	Topic string `json:"topic"`
}

type toggleRequest struct {
	ID string `json:"id"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *topic.Session)

// withSession resolves {id} or answers 404.
func (s *server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h(w, r, sess)
	}
}

func (s *server) publish(ctx context.Context, subject string, st topic.SessionState) {
	s.deps.events.Session(ctx, subject, events.SessionEvent{
		SessionID: st.ID,
		Topic:     st.Topic,
		Selected:  st.Selected,
		Mode:      string(st.Mode),
	})
}

func (s *server) readTopic(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req topicRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if err := s.checkTopic(req.Topic); err != nil {
		writeError(w, statusFor(err), err.Error())
		return "", false
	}
	return req.Topic, true
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	key, ok := s.readTopic(w, r)
	if !ok {
		return
	}
	sess := s.sessions.Create(r.Context(), key)
	s.sessionGauge()
	st := sess.State()
	s.publish(r.Context(), events.SubjectNavigate, st)
	writeJSON(w, http.StatusCreated, st)
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *topic.Session) {
	if r.URL.Query().Get("wait") != "" {
		ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
		defer cancel()
		if err := sess.Wait(ctx); err != nil {
			// Answer with the still-loading state; clients poll again.
			s.logger.Debug("session wait ended before fetch landed", "session", sess.ID(), "err", err)
			w.Header().Set("Retry-After", "1")
		}
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.sessionGauge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleNavigate(w http.ResponseWriter, r *http.Request, sess *topic.Session) {
	key, ok := s.readTopic(w, r)
	if !ok {
		return
	}
	sess.Navigate(r.Context(), key)
	st := sess.State()
	s.publish(r.Context(), events.SubjectNavigate, st)
	writeJSON(w, http.StatusOK, st)
}

// handleToggle flips one article in the selection. Selecting a third
// article is silently ignored; the returned state shows the unchanged
// selection.
func (s *server) handleToggle(w http.ResponseWriter, r *http.Request, sess *topic.Session) {
	var req toggleRequest
	if err := decodeBody(w, r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "article id is required")
		return
	}
	if _, err := sess.Toggle(req.ID); err != nil {
		writeError(w, statusFor(err), domain.ErrUnknownArticle.Error())
		return
	}
	st := sess.State()
	s.publish(r.Context(), events.SubjectToggle, st)
	writeJSON(w, http.StatusOK, st)
}

// handleCommit snapshots the selection. With nothing selected it is a
// no-op and the state is returned unchanged.
func (s *server) handleCommit(w http.ResponseWriter, r *http.Request, sess *topic.Session) {
	committed := sess.Commit()
	st := sess.State()
	if committed {
		s.publish(r.Context(), events.SubjectCommit, st)
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request, sess *topic.Session) {
	sess.Reset()
	st := sess.State()
	s.publish(r.Context(), events.SubjectReset, st)
	writeJSON(w, http.StatusOK, st)
}

type insightResponse struct {
	Article domain.Article `json:"article"`
	Stale   bool           `json:"stale"`
}

func (s *server) handleInsight(w http.ResponseWriter, _ *http.Request, sess *topic.Session) {
	st := sess.State()
	if st.Mode != topic.ModeInsight {
		writeError(w, http.StatusConflict, "session is not in insight mode")
		return
	}
	a, ok := domain.FindArticle(st.Articles, st.Snapshot[0])
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrUnknownArticle.Error())
		return
	}
	writeJSON(w, http.StatusOK, insightResponse{Article: a, Stale: st.Stale})
}

type comparisonResponse struct {
	IDs    []string       `json:"ids"`
	Stale  bool           `json:"stale"`
	Result compare.Result `json:"result"`
}

func (s *server) handleComparison(w http.ResponseWriter, r *http.Request, sess *topic.Session) {
	st := sess.State()
	if st.Mode != topic.ModeCompare {
		writeError(w, http.StatusConflict, "session is not in compare mode")
		return
	}
	res, err := compare.Pair(r.Context(), s.deps.comparator, st.Articles, st.Snapshot)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.Counter(metrics.WithLabels("comparisons_total", "result", outcome), "Article comparisons by outcome.").Inc()
	if err != nil {
		if !errors.Is(err, domain.ErrUnknownArticle) {
			s.logger.Error("comparison failed", "session", st.ID, "err", err)
		}
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, comparisonResponse{IDs: st.Snapshot, Stale: st.Stale, Result: res})
}
