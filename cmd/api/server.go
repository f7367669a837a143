package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/astrobio/progression/engine/catalog"
	"github.com/astrobio/progression/engine/chart"
	"github.com/astrobio/progression/engine/compare"
	"github.com/astrobio/progression/engine/dashboard"
	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/engine/events"
	"github.com/astrobio/progression/engine/nav"
	"github.com/astrobio/progression/engine/search"
	"github.com/astrobio/progression/engine/topic"
	"github.com/astrobio/progression/pkg/metrics"
)

type server struct {
	deps     *deps
	sessions *topic.Store
	metrics  *metrics.Registry
	logger   *slog.Logger

	sessionIdle time.Duration
	waitTimeout time.Duration
}

func newServer(d *deps, cfg Config, logger *slog.Logger) *server {
	return &server{
		deps:        d,
		sessions:    topic.NewStore(d.fetcher, logger),
		metrics:     metrics.New(),
		logger:      logger,
		sessionIdle: cfg.SessionIdle,
		waitTimeout: cfg.WaitTimeout,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/dashboard/{key}", s.handleDashboard)
	mux.HandleFunc("GET /api/dashboard/{key}/cooccurrence", s.handleCoOccurrence)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/articles", s.handleArticles)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleGetSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/navigate", s.withSession(s.handleNavigate))
	mux.HandleFunc("POST /api/sessions/{id}/toggle", s.withSession(s.handleToggle))
	mux.HandleFunc("POST /api/sessions/{id}/commit", s.withSession(s.handleCommit))
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.withSession(s.handleReset))
	mux.HandleFunc("GET /api/sessions/{id}/insight", s.withSession(s.handleInsight))
	mux.HandleFunc("GET /api/sessions/{id}/comparison", s.withSession(s.handleComparison))

	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return mux
}

// sweepSessions drops idle sessions until ctx ends.
func (s *server) sweepSessions(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.sessions.Sweep(now, s.sessionIdle); n > 0 {
				s.logger.Info("idle sessions swept", "removed", n, "live", s.sessions.Len())
			}
			s.sessionGauge()
		}
	}
}

func (s *server) sessionGauge() {
	s.metrics.Gauge("topic_sessions_active", "Live topic sessions.").Set(int64(s.sessions.Len()))
}

// --- JSON helpers ---

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrUnknownTopic),
		errors.Is(err, domain.ErrUnknownArticle):
		return http.StatusNotFound
	case errors.Is(err, compare.ErrArity):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Catalog and dashboard ---

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if len(s.deps.breakers) > 0 {
		states := make(map[string]string, len(s.deps.breakers))
		for name, b := range s.deps.breakers {
			states[name] = b.State().String()
		}
		resp["breakers"] = states
	}
	writeJSON(w, http.StatusOK, resp)
}

type categorySummary struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	ProgressPct int    `json:"progressPct"`
	TopicCount  int    `json:"topicCount"`
	Dashboard   string `json:"dashboard"`
	Topic       string `json:"topic"`
}

func (s *server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	cats := s.deps.catalog.Categories()
	out := make([]categorySummary, len(cats))
	for i, c := range cats {
		out[i] = categorySummary{
			Key:         c.Key,
			Label:       c.Label,
			ProgressPct: c.ProgressPct,
			TopicCount:  len(c.Topics),
			Dashboard:   nav.DashboardPath(c.Key),
			Topic:       nav.TopicPath(c.Key),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type resolveResponse struct {
	nav.Route
	// Known is false when a dashboard or topic key matches no category.
	Known bool `json:"known"`
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	route := nav.Parse(r.URL.Query().Get("path"))
	known := route.Kind != nav.KindNotFound
	switch route.Kind {
	case nav.KindDashboard:
		_, known = s.deps.catalog.Lookup(route.Param)
	case nav.KindTopic:
		known = s.checkTopic(route.Param) == nil
	}
	writeJSON(w, http.StatusOK, resolveResponse{Route: route, Known: known})
}

type dashboardResponse struct {
	dashboard.View
	Articles []domain.Article `json:"articles,omitempty"`
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d := dashboard.New(s.deps.catalog)
	if err := d.NavigateToCategory(r.PathValue("key")); err != nil {
		writeJSON(w, http.StatusNotFound, dashboardResponse{View: d.View()})
		return
	}
	d.Search(r.URL.Query().Get("q"))

	resp := dashboardResponse{View: d.View()}
	if resp.Mode == dashboard.ModeSearch {
		list, err := s.search(r.Context(), resp.CategoryKey, resp.Query, search.DefaultLimit)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Articles = list
	}
	writeJSON(w, http.StatusOK, resp)
}

type coOccurrenceResponse struct {
	Source  string        `json:"source"`
	Heatmap chart.Heatmap `json:"heatmap"`
}

func (s *server) handleCoOccurrence(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.deps.catalog.Lookup(r.PathValue("key"))
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrUnknownCategory.Error())
		return
	}
	resp := coOccurrenceResponse{Source: "placeholder", Heatmap: chart.Matrix(cat.Topics)}
	if s.deps.graph != nil {
		names := topicNames(cat)
		pairs, err := s.deps.graph.CoOccurrence(r.Context(), names)
		if err != nil {
			s.logger.Warn("co-occurrence query failed, serving placeholder", "category", cat.Key, "err", err)
		} else {
			resp = coOccurrenceResponse{Source: "graph", Heatmap: chart.MatrixFromPairs(names, pairs)}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func topicNames(c catalog.Category) []string {
	names := make([]string, len(c.Topics))
	for i, t := range c.Topics {
		names[i] = t.Name
	}
	return names
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = search.DefaultLimit
	}
	list, err := s.search(r.Context(), q.Get("category"), q.Get("q"), limit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// search runs a query. Invalid queries are errors; backend failures
// degrade to an empty list.
func (s *server) search(ctx context.Context, category, query string, limit int) ([]domain.Article, error) {
	q := domain.NormalizeQuery(query)
	if err := domain.ValidateSearch(q); err != nil {
		return nil, err
	}
	list, err := s.deps.searcher.Search(ctx, q, limit)
	result := "ok"
	if err != nil {
		s.logger.Warn("search failed, returning no articles", "query", q, "err", err)
		list = []domain.Article{}
		result = "error"
	}
	s.metrics.Counter(metrics.WithLabels("article_search_total", "result", result), "Article searches by outcome.").Inc()
	s.deps.events.Search(ctx, events.SearchEvent{Category: category, Query: q, Results: len(list)})
	return list, nil
}

// checkTopic validates a topic page key and requires it to name a catalog
// category.
func (s *server) checkTopic(key string) error {
	if err := domain.ValidateKey("topic", key); err != nil {
		return err
	}
	if _, ok := s.deps.catalog.Lookup(key); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownTopic, key)
	}
	return nil
}

func (s *server) handleArticles(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("topic")
	if err := s.checkTopic(key); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	list, err := s.deps.local.Fetch(r.Context(), key)
	if err != nil {
		s.logger.Error("article lookup failed", "topic", key, "err", err)
		writeError(w, http.StatusBadGateway, "article lookup failed")
		return
	}
	if list == nil {
		list = []domain.Article{}
	}
	writeJSON(w, http.StatusOK, list)
}
