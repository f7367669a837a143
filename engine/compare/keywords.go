package compare

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/pkg/fn"
)

// Keywords scores a pair by term overlap. The correlation series is the
// Jaccard overlap of titles, keywords and summaries, in that order; the
// agreement is the keyword overlap as a percentage.
type Keywords struct{}

// Compare implements Provider.
func (Keywords) Compare(ctx context.Context, a, b domain.Article) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ka, kb := normalizeKeywords(a.Keywords), normalizeKeywords(b.Keywords)
	keywordOverlap := jaccard(ka, kb)
	return Result{
		Correlation: []float64{
			jaccard(tokens(a.Title), tokens(b.Title)),
			keywordOverlap,
			jaccard(tokens(a.Summary), tokens(b.Summary)),
		},
		SharedKeywords: SharedKeywords(a, b),
		AgreementPct:   math.Round(keywordOverlap * 100),
	}, nil
}

// SharedKeywords returns the case-folded keywords both articles carry, in
// the order they appear on a.
func SharedKeywords(a, b domain.Article) []string {
	inB := make(map[string]bool, len(b.Keywords))
	for _, k := range normalizeKeywords(b.Keywords) {
		inB[k] = true
	}
	shared := fn.Filter(normalizeKeywords(a.Keywords), func(k string) bool { return inB[k] })
	if shared == nil {
		shared = []string{}
	}
	return shared
}

func normalizeKeywords(kws []string) []string {
	norm := fn.Map(kws, func(k string) string { return strings.ToLower(strings.TrimSpace(k)) })
	return fn.Unique(fn.Filter(norm, func(k string) bool { return k != "" }))
}

func tokens(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fn.Unique(fn.Filter(words, func(w string) bool { return len(w) > 2 }))
}

// jaccard returns |a∩b| / |a∪b| over sets; two empty sets score 0.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	inter := 0
	for _, x := range b {
		if set[x] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
