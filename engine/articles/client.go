package articles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/pkg/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the local article endpoint the front end pointed at.
const DefaultBaseURL = "http://127.0.0.1:5000/api"

// ClientOpts configures a remote article client.
type ClientOpts struct {
	BaseURL string
	// RequestsPerSecond throttles outbound calls; <= 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Breaker           resilience.BreakerOpts
}

// DefaultClientOpts provides sensible defaults.
var DefaultClientOpts = ClientOpts{
	BaseURL:           DefaultBaseURL,
	RequestsPerSecond: 5,
	Burst:             5,
	Timeout:           10 * time.Second,
	Breaker:           resilience.DefaultBreakerOpts,
}

// Client fetches articles over HTTP: GET {base}/articles?topic=<key>.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewClient creates a Client. Zero-valued options fall back to DefaultClientOpts.
func NewClient(opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultClientOpts.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultClientOpts.Timeout
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		breaker: resilience.NewBreaker(opts.Breaker),
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return c
}

// Breaker exposes the client's circuit breaker state for health reporting.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// Fetch implements Fetcher. A non-2xx response is an error.
func (c *Client) Fetch(ctx context.Context, topic string) ([]domain.Article, error) {
	ctx, span := otel.Tracer("engine/articles").Start(ctx, "articles.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("topic", topic))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("articles: throttle: %w", err)
		}
	}

	out, err := resilience.Do(ctx, c.breaker, func(ctx context.Context) ([]domain.Article, error) {
		return c.get(ctx, topic)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("articles", len(out)))
	return out, nil
}

func (c *Client) get(ctx context.Context, topic string) ([]domain.Article, error) {
	u := c.baseURL + "/articles?" + url.Values{"topic": {topic}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("articles: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("articles: fetch %q: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("articles: fetch %q: status %d", topic, resp.StatusCode)
	}

	var list []domain.Article
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("articles: decode: %w", err)
	}
	if list == nil {
		list = []domain.Article{}
	}
	return list, nil
}
