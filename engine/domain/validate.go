package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns: fragments that should never appear in a search query.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

var urlSafe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// MaxQueryLength bounds a search query in runes.
const MaxQueryLength = 200

// NormalizeQuery trims q. An empty result means "no search".
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

// ValidateQuery checks a normalized search query. The empty query is valid.
func ValidateQuery(q string) error {
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return NewValidationError("query", q, ErrQueryTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(q) {
			return NewValidationError("query", q, ErrQueryInjection)
		}
	}
	return nil
}

// ValidateSearch checks a normalized query that is about to be run. Unlike
// ValidateQuery it rejects the empty query.
func ValidateSearch(q string) error {
	if q == "" {
		return NewValidationError("query", q, ErrEmptyField)
	}
	return ValidateQuery(q)
}

// ValidateKey checks that a category or topic key is URL-safe.
func ValidateKey(field, key string) error {
	if key == "" {
		return NewValidationError(field, key, ErrEmptyField)
	}
	if !urlSafe.MatchString(key) {
		return NewValidationError(field, key, ErrNotURLSafe)
	}
	return nil
}

// ValidateArticle checks an article before it is indexed.
func ValidateArticle(a Article) error {
	if strings.TrimSpace(a.Key()) == "" {
		return NewValidationError("id", a.ID, ErrInvalidArticle)
	}
	if strings.TrimSpace(a.Title) == "" {
		return NewValidationError("title", a.Title, ErrEmptyField)
	}
	return nil
}
