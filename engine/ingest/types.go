package ingest

import "github.com/astrobio/progression/engine/domain"

// TaggedDoc is a validated article with the catalog topics it mentions.
type TaggedDoc struct {
	Article domain.Article
	Topics  []string
}

// EmbeddedDoc is a tagged article with its embedding.
type EmbeddedDoc struct {
	TaggedDoc
	Embedding []float32
}

// embedText is the text an article is embedded and matched on.
func embedText(a domain.Article) string {
	text := a.Title
	if a.Summary != "" {
		text += ". " + a.Summary
	}
	for _, k := range a.Keywords {
		text += " " + k
	}
	return text
}
