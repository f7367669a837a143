package semantic

import "github.com/astrobio/progression/engine/domain"

// ArticleHit is one article returned by a similarity search.
type ArticleHit struct {
	Article domain.Article `json:"article"`
	Score   float32        `json:"score"`
}

// ArticleRecord is one article vector to store in Qdrant.
type ArticleRecord struct {
	Article   domain.Article
	Topics    []string
	Embedding []float32
}
