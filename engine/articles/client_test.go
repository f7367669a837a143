package articles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/pkg/resilience"
)

func TestClientFetch(t *testing.T) {
	var gotPath, gotTopic string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTopic = r.URL.Query().Get("topic")
		json.NewEncoder(w).Encode([]domain.Article{{ID: "1", Title: "Hydroponics in orbit", Keywords: []string{"growth"}}})
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL + "/api/"})
	list, err := c.Fetch(context.Background(), "root zone & aeration")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/api/articles" {
		t.Fatalf("expected /api/articles, got %s", gotPath)
	}
	if gotTopic != "root zone & aeration" {
		t.Fatalf("topic not escaped round-trip: %q", gotTopic)
	}
	if len(list) != 1 || list[0].Title != "Hydroponics in orbit" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestClientNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL})
	if _, err := c.Fetch(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestClientBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := NewClient(ClientOpts{BaseURL: srv.URL}).Fetch(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClientNullBodyIsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	list, err := NewClient(ClientOpts{BaseURL: srv.URL}).Fetch(context.Background(), "x")
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", list, err)
	}
}

func TestClientBreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{
		BaseURL: srv.URL,
		Breaker: resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Minute},
	})
	ctx := context.Background()
	c.Fetch(ctx, "x")
	c.Fetch(ctx, "x")
	_, err := c.Fetch(ctx, "x")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
	if c.Breaker().State() != resilience.StateOpen {
		t.Fatalf("expected open breaker, got %v", c.Breaker().State())
	}
}

func TestClientThrottleHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1})
	if _, err := c.Fetch(context.Background(), "x"); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Fetch(ctx, "x"); err == nil {
		t.Fatal("expected throttle error once burst is spent")
	}
}

func TestStaticFetch(t *testing.T) {
	s := NewStatic()
	list, err := s.Fetch(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 4 || list[0].Title != "Mars Habitat Systems" {
		t.Fatalf("unexpected fixtures %+v", list)
	}
	list[0].Title = "changed"
	again, _ := s.Fetch(context.Background(), "anything")
	if again[0].Title != "Mars Habitat Systems" {
		t.Fatal("static fetcher leaked its backing slice")
	}
}

func TestStaticFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStatic().Fetch(ctx, "x"); err == nil {
		t.Fatal("expected context error")
	}
}
