package ingest

import (
	"strings"
	"unicode"

	"github.com/astrobio/progression/pkg/fn"
)

// minWordLen drops connectives like "&" and short words from topic names.
const minWordLen = 4

// Matcher finds catalog topics an article talks about. A topic matches
// when its full name appears in the text, or when every significant word
// of the name does.
type Matcher struct {
	topics []topicTerms
}

type topicTerms struct {
	name  string
	full  string
	words []string
}

// NewMatcher builds a matcher over topic names.
func NewMatcher(names []string) *Matcher {
	m := &Matcher{}
	for _, n := range fn.Unique(names) {
		m.topics = append(m.topics, topicTerms{
			name:  n,
			full:  strings.ToLower(n),
			words: fn.Filter(tokenize(n), func(w string) bool { return len([]rune(w)) >= minWordLen }),
		})
	}
	return m
}

// Match returns the names of topics text mentions, in catalog order.
func (m *Matcher) Match(text string) []string {
	lower := strings.ToLower(text)
	tokens := make(map[string]bool)
	for _, t := range tokenize(text) {
		tokens[t] = true
	}

	var out []string
	for _, t := range m.topics {
		if strings.Contains(lower, t.full) || (len(t.words) > 0 && allIn(t.words, tokens)) {
			out = append(out, t.name)
		}
	}
	return out
}

func allIn(words []string, set map[string]bool) bool {
	for _, w := range words {
		if !set[w] {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
