// Package graph records which topics each article mentions in Neo4j and
// answers pairwise topic co-occurrence queries for the dashboard heatmap.
package graph

import (
	"context"
	"fmt"

	"github.com/astrobio/progression/engine/chart"
	"github.com/astrobio/progression/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store owns the Article/Topic graph.
type Store struct {
	opener SessionOpener
}

// New creates a Store over a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{opener: driverOpener{driver: driver}}
}

// NewWithOpener creates a Store over a custom session opener.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener}
}

var schema = []string{
	`CREATE CONSTRAINT article_id IF NOT EXISTS FOR (a:Article) REQUIRE a.id IS UNIQUE`,
	`CREATE CONSTRAINT topic_name IF NOT EXISTS FOR (t:Topic) REQUIRE t.name IS UNIQUE`,
}

// EnsureSchema creates the uniqueness constraints MERGE relies on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	for _, stmt := range schema {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graph: schema: %w", err)
		}
	}
	return nil
}

const saveMentionsCypher = `MERGE (a:Article {id: $id})
SET a.title = $title, a.author = $author, a.link = $link
WITH a
UNWIND $topics AS name
MERGE (t:Topic {name: name})
MERGE (a)-[:MENTIONS]->(t)`

// SaveMentions upserts the article node and a MENTIONS edge to each topic.
func (s *Store) SaveMentions(ctx context.Context, a domain.Article, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		_, err := tx.Run(ctx, saveMentionsCypher, map[string]any{
			"id":     a.Key(),
			"title":  a.Title,
			"author": a.Author,
			"link":   a.Link,
			"topics": toAnySlice(topics),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: save mentions for %q: %w", a.Key(), err)
	}
	return nil
}

const coOccurrenceCypher = `MATCH (x:Topic)<-[:MENTIONS]-(a:Article)-[:MENTIONS]->(y:Topic)
WHERE x.name IN $topics AND y.name IN $topics AND x.name < y.name
RETURN x.name AS x, y.name AS y, count(DISTINCT a) AS n`

// CoOccurrence counts, for each pair of the given topics, the articles that
// mention both. Each unordered pair appears at most once.
func (s *Store) CoOccurrence(ctx context.Context, topics []string) ([]chart.Pair, error) {
	if len(topics) < 2 {
		return nil, nil
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, coOccurrenceCypher, map[string]any{"topics": toAnySlice(topics)})
	if err != nil {
		return nil, fmt.Errorf("graph: co-occurrence: %w", err)
	}

	var pairs []chart.Pair
	for result.Next(ctx) {
		rec := result.Record()
		x, _ := rec.Get("x")
		y, _ := rec.Get("y")
		n, _ := rec.Get("n")
		xs, okX := x.(string)
		ys, okY := y.(string)
		cnt, okN := n.(int64)
		if !okX || !okY || !okN {
			continue
		}
		pairs = append(pairs, chart.Pair{X: xs, Y: ys, V: float64(cnt)})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: co-occurrence: %w", err)
	}
	return pairs, nil
}

// NodeCounts returns node counts grouped by label.
func (s *Store) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: node counts: %w", err)
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, result.Err()
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
