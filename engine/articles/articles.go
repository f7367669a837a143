// Package articles provides the article-fetch capability: a topic key in,
// an ordered article list out.
package articles

import (
	"context"

	"github.com/astrobio/progression/engine/domain"
)

// Fetcher returns the articles for a topic.
type Fetcher interface {
	Fetch(ctx context.Context, topic string) ([]domain.Article, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, topic string) ([]domain.Article, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, topic string) ([]domain.Article, error) {
	return f(ctx, topic)
}

// Static serves a fixed article list for every topic.
type Static struct {
	Articles []domain.Article
}

// NewStatic returns a Static fetcher over the built-in fixture articles.
func NewStatic() *Static {
	return &Static{Articles: Fixtures()}
}

// Fetch returns a copy of the fixture list.
func (s *Static) Fetch(ctx context.Context, _ string) ([]domain.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Article, len(s.Articles))
	copy(out, s.Articles)
	return out, nil
}

// Fixtures returns the mock topic-page articles.
func Fixtures() []domain.Article {
	return []domain.Article{
		{
			ID:       "mars-habitat-systems",
			Title:    "Mars Habitat Systems",
			Author:   "Dr. Smith",
			Link:     "#",
			Keywords: []string{"habitat", "pressure", "radiation", "oxygen"},
		},
		{
			ID:       "lunar-agriculture",
			Title:    "Lunar Agriculture",
			Author:   "Dr. Chen",
			Link:     "#",
			Keywords: []string{"growth", "regolith", "light", "oxygen"},
		},
		{
			ID:       "closed-loop-ecosystems",
			Title:    "Closed Loop Ecosystems",
			Author:   "Dr. Rao",
			Link:     "#",
			Keywords: []string{"recycling", "microbes", "growth", "water"},
		},
		{
			ID:       "biosphere-life-support",
			Title:    "Biosphere Life Support",
			Author:   "Dr. Nguyen",
			Link:     "#",
			Keywords: []string{"oxygen", "water", "pressure", "co2"},
		},
	}
}
