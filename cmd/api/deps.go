package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astrobio/progression/engine/articles"
	"github.com/astrobio/progression/engine/catalog"
	"github.com/astrobio/progression/engine/chart"
	"github.com/astrobio/progression/engine/compare"
	"github.com/astrobio/progression/engine/events"
	"github.com/astrobio/progression/engine/graph"
	"github.com/astrobio/progression/engine/search"
	"github.com/astrobio/progression/engine/semantic"
	"github.com/astrobio/progression/pkg/ollama"
	"github.com/astrobio/progression/pkg/resilience"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// topicArticleLimit caps articles served for one topic page.
const topicArticleLimit = 12

// coOccurrence is the graph query behind the pairwise heatmap.
type coOccurrence interface {
	CoOccurrence(ctx context.Context, topics []string) ([]chart.Pair, error)
}

// deps are the collaborators the HTTP server is built from. Optional
// integrations fall back to static data when not configured.
type deps struct {
	catalog *catalog.Catalog
	// fetcher feeds topic sessions; local serves GET /api/articles.
	fetcher    articles.Fetcher
	local      articles.Fetcher
	searcher   search.Searcher
	comparator compare.Provider
	graph      coOccurrence
	events     events.Publisher
	// breakers are reported on /api/health.
	breakers map[string]*resilience.Breaker
	closers  []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg Config, logger *slog.Logger) (*deps, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	d := &deps{
		catalog:  cat,
		searcher: search.Mock{},
		local:    articles.NewStatic(),
		events:   events.Nop{},
		breakers: make(map[string]*resilience.Breaker),
	}

	// --- Connect to Qdrant ---
	if cfg.QdrantURL != "" {
		vs, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("qdrant connect: %w", err)
		}
		d.closers = append(d.closers, func() { vs.Close() })
		br := resilience.NewBreaker(resilience.DefaultBreakerOpts)
		sem := search.NewSemantic(ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel), vs, search.SemanticOpts{
			Breaker: br,
			Logger:  logger,
		})
		d.searcher = sem
		d.local = search.TopicFetcher(sem, topicArticleLimit)
		d.breakers["semantic"] = br
		logger.Info("semantic search enabled", "qdrant", cfg.QdrantURL, "collection", cfg.Collection)
	}

	d.fetcher = d.local
	if cfg.ArticlesBaseURL != "" {
		opts := articles.DefaultClientOpts
		opts.BaseURL = cfg.ArticlesBaseURL
		opts.RequestsPerSecond = cfg.ArticlesRPS
		client := articles.NewClient(opts)
		d.fetcher = client
		d.breakers["articles"] = client.Breaker()
		logger.Info("remote article fetch enabled", "base_url", cfg.ArticlesBaseURL)
	}

	d.comparator, err = newComparator(cfg, logger)
	if err != nil {
		d.close()
		return nil, err
	}

	// --- Connect to Neo4j ---
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			d.close()
			return nil, fmt.Errorf("neo4j driver: %w", err)
		}
		d.closers = append(d.closers, func() { driver.Close(context.Background()) })
		gs := graph.New(driver)
		if err := gs.EnsureSchema(ctx); err != nil {
			logger.Warn("neo4j schema setup failed", "err", err)
		}
		d.graph = gs
		logger.Info("graph co-occurrence enabled", "neo4j", cfg.Neo4jURL)
	}

	// --- Connect to NATS ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("astrobio-api"))
		if err != nil {
			d.close()
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		d.closers = append(d.closers, func() { nc.Drain() })
		d.events = events.NewNATS(nc, logger)
		logger.Info("event publishing enabled", "nats", cfg.NATSURL)
	}

	return d, nil
}

func newComparator(cfg Config, logger *slog.Logger) (compare.Provider, error) {
	switch cfg.Comparator {
	case "", "fixed":
		return compare.NewFixed(), nil
	case "keywords":
		return compare.Keywords{}, nil
	case "llm":
		if cfg.OpenAIKey == "" {
			logger.Warn("COMPARATOR=llm without OPENAI_API_KEY, using keyword overlap")
			return compare.Keywords{}, nil
		}
		return compare.NewLLM(compare.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel)), nil
	}
	return nil, fmt.Errorf("unknown comparator %q (want fixed, keywords or llm)", cfg.Comparator)
}
