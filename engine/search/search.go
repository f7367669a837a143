// Package search answers dashboard article queries, either from mock
// results or from the semantic index.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astrobio/progression/engine/articles"
	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/engine/semantic"
	"github.com/astrobio/progression/pkg/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultLimit caps results when the caller passes a non-positive limit.
const DefaultLimit = 10

// Searcher finds articles matching a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Article, error)
}

// Mock returns two canned articles titled after the query.
type Mock struct{}

// Search validates query and returns the mock results, truncated to limit.
func (Mock) Search(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := domain.NormalizeQuery(query)
	if err := domain.ValidateSearch(q); err != nil {
		return nil, err
	}
	out := []domain.Article{
		{
			ID:       "mock-space-agriculture",
			Title:    fmt.Sprintf("Impact of %s on Space Agriculture", q),
			Author:   "Dr. Jane Doe",
			Link:     "#",
			Summary:  fmt.Sprintf("How %s affects crop growth in closed habitats.", q),
			Keywords: []string{"oxygen", "photosynthesis", "growth", "radiation"},
		},
		{
			ID:       "mock-microbial-life",
			Title:    fmt.Sprintf("%s Research in Microbial Life", q),
			Author:   "Dr. Mark Patel",
			Link:     "#",
			Summary:  fmt.Sprintf("Microbial responses to %s aboard the ISS.", q),
			Keywords: []string{"microbes", "biome", "ISS", "lab", "experiments"},
		},
	}
	return truncate(out, limit), nil
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the vector search the Semantic searcher runs against.
type Index interface {
	SearchArticles(ctx context.Context, embedding []float32, limit int, topic string) ([]semantic.ArticleHit, error)
}

// Semantic embeds the query and runs a k-NN search over the article index.
type Semantic struct {
	embedder Embedder
	index    Index
	breaker  *resilience.Breaker
	minScore float32
	logger   *slog.Logger
}

// SemanticOpts configures a Semantic searcher.
type SemanticOpts struct {
	// MinScore drops hits scoring below it. Zero keeps everything.
	MinScore float32
	Breaker  *resilience.Breaker
	Logger   *slog.Logger
}

// NewSemantic creates a Semantic searcher.
func NewSemantic(embedder Embedder, index Index, opts SemanticOpts) *Semantic {
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Semantic{
		embedder: embedder,
		index:    index,
		breaker:  opts.Breaker,
		minScore: opts.MinScore,
		logger:   opts.Logger,
	}
}

// Search implements Searcher.
func (s *Semantic) Search(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	return s.search(ctx, query, limit, "")
}

// SearchTopic searches for query among articles tagged with topic.
func (s *Semantic) SearchTopic(ctx context.Context, topic string, limit int) ([]domain.Article, error) {
	return s.search(ctx, topic, limit, topic)
}

func (s *Semantic) search(ctx context.Context, query string, limit int, topic string) ([]domain.Article, error) {
	ctx, span := otel.Tracer("search").Start(ctx, "search.semantic")
	defer span.End()

	q := domain.NormalizeQuery(query)
	if err := domain.ValidateSearch(q); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	span.SetAttributes(attribute.Int("search.limit", limit), attribute.String("search.topic", topic))

	hits, err := resilience.Do(ctx, s.breaker, func(ctx context.Context) ([]semantic.ArticleHit, error) {
		vec, err := s.embedder.Embed(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("search: embed: %w", err)
		}
		return s.index.SearchArticles(ctx, vec, limit, topic)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]domain.Article, 0, len(hits))
	for _, h := range hits {
		if h.Score < s.minScore {
			continue
		}
		out = append(out, h.Article)
	}
	s.logger.Debug("semantic search", "query", q, "topic", topic, "hits", len(hits), "kept", len(out))
	return out, nil
}

// TopicFetcher serves topic pages from a searcher: the topic key is used as
// the query.
func TopicFetcher(s Searcher, limit int) articles.Fetcher {
	return articles.FetcherFunc(func(ctx context.Context, topic string) ([]domain.Article, error) {
		if ts, ok := s.(interface {
			SearchTopic(ctx context.Context, topic string, limit int) ([]domain.Article, error)
		}); ok {
			return ts.SearchTopic(ctx, topic, limit)
		}
		return s.Search(ctx, topic, limit)
	})
}

func truncate(list []domain.Article, limit int) []domain.Article {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
