// Package compare produces comparison metrics for a pair of articles. The
// Provider interface lets the fixed payload, keyword overlap and an LLM
// scorer be swapped without changing callers.
package compare

import (
	"context"
	"errors"
	"fmt"

	"github.com/astrobio/progression/engine/domain"
)

// ErrArity is returned when a comparison is requested for anything other
// than exactly two articles.
var ErrArity = errors.New("compare: exactly two articles are required")

// Result is the comparison payload. Correlation values lie in [0,1] and
// AgreementPct in [0,100].
type Result struct {
	Correlation    []float64 `json:"correlation"`
	SharedKeywords []string  `json:"sharedKeywords"`
	AgreementPct   float64   `json:"agreementPct"`
}

// Provider compares two articles.
type Provider interface {
	Compare(ctx context.Context, a, b domain.Article) (Result, error)
}

// Pair resolves ids against list and compares them. It rejects any arity
// other than two with ErrArity and unknown ids with domain.ErrUnknownArticle.
func Pair(ctx context.Context, p Provider, list []domain.Article, ids []string) (Result, error) {
	if len(ids) != 2 {
		return Result{}, fmt.Errorf("%w: got %d", ErrArity, len(ids))
	}
	a, ok := domain.FindArticle(list, ids[0])
	if !ok {
		return Result{}, fmt.Errorf("compare: %q: %w", ids[0], domain.ErrUnknownArticle)
	}
	b, ok := domain.FindArticle(list, ids[1])
	if !ok {
		return Result{}, fmt.Errorf("compare: %q: %w", ids[1], domain.ErrUnknownArticle)
	}
	return p.Compare(ctx, a, b)
}

// Fixed returns the same payload for every pair.
type Fixed struct {
	Result Result
}

// NewFixed returns the placeholder comparison shown before a real scorer
// is wired in.
func NewFixed() *Fixed {
	return &Fixed{Result: Result{
		Correlation:    []float64{0.8, 0.9, 0.7},
		SharedKeywords: []string{"oxygen", "growth", "radiation", "pressure"},
		AgreementPct:   85,
	}}
}

// Compare returns a copy of the fixed payload.
func (f *Fixed) Compare(_ context.Context, _, _ domain.Article) (Result, error) {
	r := f.Result
	r.Correlation = append([]float64(nil), f.Result.Correlation...)
	r.SharedKeywords = append([]string(nil), f.Result.SharedKeywords...)
	return r, nil
}
