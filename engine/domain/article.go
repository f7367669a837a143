// Package domain holds the types and errors shared by every engine package.
package domain

// Article is a research article shown on a topic page or in search results.
// Its lifetime is a single topic or search view.
type Article struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Link     string   `json:"link"`
	Summary  string   `json:"summary,omitempty"`
	ImageRef string   `json:"imageRef,omitempty"`
	Keywords []string `json:"keywords"`
}

// Key returns the identifier used for selection. Articles from sources that
// carry no id (the mock feed identifies articles by title) fall back to
// their title.
func (a Article) Key() string {
	if a.ID != "" {
		return a.ID
	}
	return a.Title
}

// FindArticle returns the article whose Key equals key.
func FindArticle(list []Article, key string) (Article, bool) {
	for _, a := range list {
		if a.Key() == key {
			return a, true
		}
	}
	return Article{}, false
}
