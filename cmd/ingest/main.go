// Command ingest loads article JSON files into Qdrant (and Neo4j when
// configured) so topic pages and dashboard search can serve them. With
// -listen it also consumes articles published on NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astrobio/progression/engine/catalog"
	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/engine/graph"
	"github.com/astrobio/progression/engine/ingest"
	"github.com/astrobio/progression/engine/semantic"
	"github.com/astrobio/progression/pkg/fn"
	"github.com/astrobio/progression/pkg/metrics"
	"github.com/astrobio/progression/pkg/ollama"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const vectorDims = 768 // nomic-embed-text

var met = metrics.New()

var (
	mArticles = func(result string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("ingest_articles_total", "result", result), "Articles ingested by outcome.")
	}
	mFiles    = met.Counter("ingest_files_total", "Article files read.")
	mBatchDur = met.Histogram("ingest_batch_duration_seconds", "Time to ingest one batch.", nil)
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	var (
		catalogPath = flag.String("catalog", os.Getenv("CATALOG_PATH"), "catalog YAML (defaults to the built-in catalog)")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		embedModel  = flag.String("model", envOr("EMBED_MODEL", "nomic-embed-text"), "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "astrobio_articles"), "Qdrant collection name")
		neo4jURL    = flag.String("neo4j", os.Getenv("NEO4J_URL"), "Neo4j bolt URL (empty disables the graph)")
		neo4jUser   = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		natsURL     = flag.String("nats", os.Getenv("NATS_URL"), "NATS URL for -listen")
		listen      = flag.Bool("listen", false, "consume articles from NATS after loading files")
		workers     = flag.Int("workers", 4, "concurrent articles per batch")
		batchSize   = flag.Int("batch", 64, "articles per batch")
		metricsAddr = flag.String("metrics", envOr("METRICS_ADDR", ":9091"), "metrics listen address (empty disables)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		logger.Error("load catalog failed", "err", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(*metricsAddr, met.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "err", err)
			}
		}()
	}

	// --- Connect to Qdrant ---
	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
		logger.Error("qdrant ensure collection failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to Qdrant", "collection", *collection, "dims", vectorDims)

	deps := ingest.Deps{
		Embedder: ollama.NewEmbedClient(*ollamaURL, *embedModel),
		Index:    vs,
		Topics:   topicNames(cat),
		Logger:   logger,
	}

	// --- Connect to Neo4j ---
	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			logger.Error("neo4j driver failed", "err", err)
			os.Exit(1)
		}
		defer driver.Close(context.Background())
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Error("neo4j verify failed", "err", err)
			os.Exit(1)
		}
		gs := graph.New(driver)
		if err := gs.EnsureSchema(ctx); err != nil {
			logger.Warn("neo4j schema setup failed", "err", err)
		}
		deps.Mentions = gs
		logger.Info("connected to Neo4j")
	}

	failed := 0
	for _, path := range flag.Args() {
		list, err := readArticles(path)
		if err != nil {
			logger.Error("read articles failed", "file", path, "err", err)
			failed++
			continue
		}
		mFiles.Inc()
		failed += ingestAll(ctx, deps, list, *batchSize, *workers, logger)
		logger.Info("file done", "file", path, "articles", len(list))
	}

	if *listen {
		if err := consume(ctx, *natsURL, deps, logger); err != nil {
			logger.Error("consumer failed", "err", err)
			os.Exit(1)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// ingestAll runs list through the pipeline in batches and returns the
// number of failed articles.
func ingestAll(ctx context.Context, deps ingest.Deps, list []domain.Article, batch, workers int, logger *slog.Logger) int {
	failed, done := 0, 0
	for _, chunk := range fn.Chunk(list, batch) {
		if ctx.Err() != nil {
			return failed + len(list) - done
		}
		done += len(chunk)
		start := time.Now()
		rep := ingest.Run(ctx, deps, chunk, workers)
		mBatchDur.ObserveSince(start)
		mArticles("ok").Add(int64(len(rep.Ingested)))
		mArticles("error").Add(int64(len(rep.Failed)))
		for key, err := range rep.Failed {
			logger.Warn("article failed", "article", key, "err", err)
		}
		failed += len(rep.Failed)
	}
	return failed
}

// readArticles accepts either a JSON array of articles or a single object.
func readArticles(path string) ([]domain.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []domain.Article
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var one domain.Article
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []domain.Article{one}, nil
}

func topicNames(cat *catalog.Catalog) []string {
	var names []string
	for _, c := range cat.Categories() {
		for _, t := range c.Topics {
			names = append(names, t.Name)
		}
	}
	return fn.Unique(names)
}

func consume(ctx context.Context, url string, deps ingest.Deps, logger *slog.Logger) error {
	if url == "" {
		return errors.New("-listen needs -nats or NATS_URL")
	}
	nc, err := nats.Connect(url, nats.Name("astrobio-ingest"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	logger.Info("consuming articles", "subject", ingest.IngestSubject, "dlq", ingest.DLQSubject)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
