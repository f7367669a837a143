package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/astrobio/progression/engine/articles"
	"github.com/astrobio/progression/engine/compare"
	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/engine/events"
	"github.com/astrobio/progression/engine/topic"
)

func createSession(t *testing.T, url, key string) topic.SessionState {
	t.Helper()
	var st topic.SessionState
	if code := doJSON(t, "POST", url+"/api/sessions", topicRequest{Topic: key}, &st); code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", code)
	}
	if st.ID == "" || st.Topic != key {
		t.Fatalf("unexpected state %+v", st)
	}
	return st
}

func waitState(t *testing.T, url, id string) topic.SessionState {
	t.Helper()
	var st topic.SessionState
	if code := doJSON(t, "GET", url+"/api/sessions/"+id+"?wait=1", nil, &st); code != http.StatusOK {
		t.Fatalf("get session: expected 200, got %d", code)
	}
	return st
}

func TestSessionCompareFlow(t *testing.T) {
	d, pub := testDeps()
	ts, _ := newTestServer(t, d)
	base := ts.URL + "/api/sessions/"

	st := createSession(t, ts.URL, "agriculture")
	st = waitState(t, ts.URL, st.ID)
	if st.Loading || len(st.Articles) != 4 {
		t.Fatalf("expected 4 loaded articles, got loading=%v n=%d", st.Loading, len(st.Articles))
	}

	// Comparison is only available in compare mode.
	if code := doJSON(t, "GET", base+st.ID+"/comparison", nil, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 before commit, got %d", code)
	}

	a, b, c := st.Articles[0].ID, st.Articles[1].ID, st.Articles[2].ID
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: a}, &st)
	if st.Action != topic.ActionInsights {
		t.Fatalf("expected insight action with one selected, got %q", st.Action)
	}
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: b}, &st)
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: c}, &st)
	if len(st.Selected) != 2 || st.Selected[0] != a || st.Selected[1] != b {
		t.Fatalf("third selection must be ignored, got %v", st.Selected)
	}
	if st.Action != topic.ActionCompare {
		t.Fatalf("expected compare action, got %q", st.Action)
	}

	doJSON(t, "POST", base+st.ID+"/commit", nil, &st)
	if st.Mode != topic.ModeCompare || len(st.Snapshot) != 2 {
		t.Fatalf("expected compare mode with snapshot, got %+v", st)
	}

	var cmp comparisonResponse
	if code := doJSON(t, "GET", base+st.ID+"/comparison", nil, &cmp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if cmp.Result.AgreementPct != 85 || len(cmp.Result.Correlation) != 3 || cmp.Stale {
		t.Fatalf("unexpected comparison %+v", cmp)
	}

	// Deselecting after commit keeps the snapshot but marks it stale.
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: a}, &st)
	if st.Mode != topic.ModeCompare || !st.Stale {
		t.Fatalf("expected stale compare snapshot, got %+v", st)
	}

	doJSON(t, "POST", base+st.ID+"/reset", nil, &st)
	if st.Mode != topic.ModeNone || len(st.Snapshot) != 0 || len(st.Selected) != 1 {
		t.Fatalf("reset must clear mode and snapshot only, got %+v", st)
	}

	want := []string{events.SubjectNavigate, events.SubjectToggle, events.SubjectToggle, events.SubjectToggle,
		events.SubjectCommit, events.SubjectToggle, events.SubjectReset}
	got := pub.subjects()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestSessionInsightFlow(t *testing.T) {
	d, _ := testDeps()
	ts, _ := newTestServer(t, d)
	base := ts.URL + "/api/sessions/"

	st := waitState(t, ts.URL, createSession(t, ts.URL, "life-support").ID)
	id := st.Articles[3].ID

	if code := doJSON(t, "GET", base+st.ID+"/insight", nil, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 before commit, got %d", code)
	}
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: id}, &st)
	doJSON(t, "POST", base+st.ID+"/commit", nil, &st)
	if st.Mode != topic.ModeInsight {
		t.Fatalf("expected insight mode, got %s", st.Mode)
	}

	var resp insightResponse
	if code := doJSON(t, "GET", base+st.ID+"/insight", nil, &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Article.ID != id {
		t.Fatalf("expected article %s, got %+v", id, resp.Article)
	}
	if code := doJSON(t, "GET", base+st.ID+"/comparison", nil, nil); code != http.StatusConflict {
		t.Fatalf("comparison needs compare mode, got %d", code)
	}
}

func TestCommitWithNothingSelectedIsNoop(t *testing.T) {
	d, pub := testDeps()
	ts, _ := newTestServer(t, d)

	st := waitState(t, ts.URL, createSession(t, ts.URL, "agriculture").ID)
	if code := doJSON(t, "POST", ts.URL+"/api/sessions/"+st.ID+"/commit", nil, &st); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if st.Mode != topic.ModeNone || st.Action != topic.ActionNone {
		t.Fatalf("expected unchanged state, got %+v", st)
	}
	for _, s := range pub.subjects() {
		if s == events.SubjectCommit {
			t.Fatal("no commit event expected")
		}
	}
}

func TestNavigateResetsSession(t *testing.T) {
	d, _ := testDeps()
	ts, _ := newTestServer(t, d)
	base := ts.URL + "/api/sessions/"

	st := waitState(t, ts.URL, createSession(t, ts.URL, "agriculture").ID)
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: st.Articles[0].ID}, &st)
	doJSON(t, "POST", base+st.ID+"/commit", nil, &st)

	var nav topic.SessionState
	if code := doJSON(t, "POST", base+st.ID+"/navigate", topicRequest{Topic: "space-habitation"}, &nav); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if nav.Topic != "space-habitation" || len(nav.Selected) != 0 || nav.Mode != topic.ModeNone || nav.Generation != st.Generation+1 {
		t.Fatalf("navigate must reset the page, got %+v", nav)
	}
}

func TestSessionRequestErrors(t *testing.T) {
	d, _ := testDeps()
	ts, srv := newTestServer(t, d)

	if code := doJSON(t, "POST", ts.URL+"/api/sessions", topicRequest{Topic: ""}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty topic, got %d", code)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/sessions", topicRequest{Topic: "a/b"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsafe topic, got %d", code)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/sessions", topicRequest{Topic: "mars"}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown topic, got %d", code)
	}
	if srv.sessions.Len() != 0 {
		t.Fatal("no session may be created for an unknown topic")
	}
	if code := doJSON(t, "GET", ts.URL+"/api/sessions/missing", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}

	st := waitState(t, ts.URL, createSession(t, ts.URL, "agriculture").ID)
	if code := doJSON(t, "POST", ts.URL+"/api/sessions/"+st.ID+"/toggle", toggleRequest{}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", code)
	}
	if code := doJSON(t, "POST", ts.URL+"/api/sessions/"+st.ID+"/toggle", toggleRequest{ID: "nope"}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown article, got %d", code)
	}
	var cur topic.SessionState
	if code := doJSON(t, "POST", ts.URL+"/api/sessions/"+st.ID+"/navigate", topicRequest{Topic: "mars"}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 navigating to unknown topic, got %d", code)
	}
	doJSON(t, "GET", ts.URL+"/api/sessions/"+st.ID, nil, &cur)
	if cur.Topic != "agriculture" || cur.Generation != st.Generation {
		t.Fatalf("failed navigate must leave the session alone, got %+v", cur)
	}
}

func TestDeleteSession(t *testing.T) {
	d, _ := testDeps()
	ts, srv := newTestServer(t, d)

	st := createSession(t, ts.URL, "agriculture")
	if code := doJSON(t, "DELETE", ts.URL+"/api/sessions/"+st.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if srv.sessions.Len() != 0 {
		t.Fatal("session not removed")
	}
	if code := doJSON(t, "DELETE", ts.URL+"/api/sessions/"+st.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", code)
	}
}

// gatedFetcher blocks until released so tests can observe the loading state.
type gatedFetcher struct {
	once    sync.Once
	release chan struct{}
}

func (g *gatedFetcher) Fetch(ctx context.Context, _ string) ([]domain.Article, error) {
	select {
	case <-g.release:
		return articles.Fixtures(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedFetcher) open() { g.once.Do(func() { close(g.release) }) }

func TestGetSessionWithoutWaitShowsLoading(t *testing.T) {
	d, _ := testDeps()
	gate := &gatedFetcher{release: make(chan struct{})}
	d.fetcher = gate
	ts, _ := newTestServer(t, d)
	defer gate.open()

	st := createSession(t, ts.URL, "agriculture")
	var cur topic.SessionState
	doJSON(t, "GET", ts.URL+"/api/sessions/"+st.ID, nil, &cur)
	if !cur.Loading || len(cur.Articles) != 0 {
		t.Fatalf("expected loading state, got %+v", cur)
	}

	gate.open()
	cur = waitState(t, ts.URL, st.ID)
	if cur.Loading || len(cur.Articles) != 4 {
		t.Fatalf("expected loaded state, got %+v", cur)
	}
}

func TestGetSessionWaitTimesOut(t *testing.T) {
	d, _ := testDeps()
	gate := &gatedFetcher{release: make(chan struct{})}
	d.fetcher = gate
	srv := newServer(d, Config{SessionIdle: time.Minute, WaitTimeout: 20 * time.Millisecond}, quietLog)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	defer gate.open()

	st := createSession(t, ts.URL, "agriculture")
	resp, err := http.Get(ts.URL + "/api/sessions/" + st.ID + "?wait=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var cur topic.SessionState
	if err := json.NewDecoder(resp.Body).Decode(&cur); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || !cur.Loading {
		t.Fatalf("expected 200 with loading state, got %d %+v", resp.StatusCode, cur)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After on a timed-out wait")
	}
}

type errProvider struct{}

func (errProvider) Compare(context.Context, domain.Article, domain.Article) (compare.Result, error) {
	return compare.Result{}, errors.New("model unavailable")
}

func TestComparisonProviderFailure(t *testing.T) {
	d, _ := testDeps()
	d.comparator = errProvider{}
	ts, _ := newTestServer(t, d)
	base := ts.URL + "/api/sessions/"

	st := waitState(t, ts.URL, createSession(t, ts.URL, "agriculture").ID)
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: st.Articles[0].ID}, nil)
	doJSON(t, "POST", base+st.ID+"/toggle", toggleRequest{ID: st.Articles[1].ID}, nil)
	doJSON(t, "POST", base+st.ID+"/commit", nil, nil)

	if code := doJSON(t, "GET", base+st.ID+"/comparison", nil, nil); code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", code)
	}
}
