// Package main implements the astrobio progression API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/astrobio/progression/pkg/mid"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	CORSOrigin  string
	CatalogPath string

	// ArticlesBaseURL points topic sessions at a remote article API. Empty
	// means topic pages are served locally.
	ArticlesBaseURL string
	ArticlesRPS     float64

	QdrantURL  string
	Collection string
	OllamaURL  string
	EmbedModel string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	NATSURL string

	Comparator  string
	OpenAIKey   string
	OpenAIModel string

	SessionIdle time.Duration
	WaitTimeout time.Duration
}

func loadConfig() Config {
	return Config{
		Port:            envOr("PORT", "8080"),
		CORSOrigin:      envOr("CORS_ORIGIN", "*"),
		CatalogPath:     os.Getenv("CATALOG_PATH"),
		ArticlesBaseURL: os.Getenv("ARTICLES_BASE_URL"),
		ArticlesRPS:     envFloat("ARTICLES_RPS", 5),
		QdrantURL:       os.Getenv("QDRANT_URL"),
		Collection:      envOr("QDRANT_COLLECTION", "astrobio_articles"),
		OllamaURL:       envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:      envOr("EMBED_MODEL", "nomic-embed-text"),
		Neo4jURL:        os.Getenv("NEO4J_URL"),
		Neo4jUser:       envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:       envOr("NEO4J_PASS", "password"),
		NATSURL:         os.Getenv("NATS_URL"),
		Comparator:      envOr("COMPARATOR", "fixed"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		SessionIdle:     envDuration("SESSION_IDLE", 30*time.Minute),
		WaitTimeout:     envDuration("WAIT_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	srv := newServer(deps, cfg, logger)
	go srv.sweepSessions(ctx, time.Minute)

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.WithRequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("astrobio-api"),
		mid.Metrics(srv.metrics),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WaitTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "comparator", cfg.Comparator)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
