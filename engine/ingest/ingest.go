// Package ingest runs articles through validation, topic tagging,
// embedding and storage so they can be searched and charted.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/astrobio/progression/engine/domain"
	"github.com/astrobio/progression/engine/semantic"
	"github.com/astrobio/progression/pkg/fn"
	"github.com/astrobio/progression/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// IngestSubject is the NATS subject for incoming articles.
	IngestSubject = "astrobio.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "astrobio.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// retryHeader carries the redelivery count.
	retryHeader = "X-Retry-Count"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index stores article vectors.
type Index interface {
	Upsert(ctx context.Context, records []semantic.ArticleRecord) error
}

// MentionStore records article-topic mentions.
type MentionStore interface {
	SaveMentions(ctx context.Context, a domain.Article, topics []string) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder Embedder
	Index    Index
	// Mentions may be nil when no graph is configured.
	Mentions MentionStore
	// Topics are the catalog topic names articles are tagged with.
	Topics []string
	Retry  fn.RetryOpts
	Logger *slog.Logger
}

// Validate checks an article via domain validation.
var Validate fn.Stage[domain.Article, domain.Article] = func(_ context.Context, a domain.Article) fn.Result[domain.Article] {
	if err := domain.ValidateArticle(a); err != nil {
		return fn.Err[domain.Article](err)
	}
	return fn.Ok(a)
}

// NewTag creates a stage that tags an article with the topics it mentions.
func NewTag(m *Matcher) fn.Stage[domain.Article, TaggedDoc] {
	return fn.MapStage(func(a domain.Article) TaggedDoc {
		return TaggedDoc{Article: a, Topics: m.Match(embedText(a))}
	})
}

// NewEmbed creates a stage that embeds the article text.
func NewEmbed(e Embedder) fn.Stage[TaggedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc TaggedDoc) fn.Result[EmbeddedDoc] {
		vec, err := e.Embed(ctx, embedText(doc.Article))
		if err != nil {
			return fn.Err[EmbeddedDoc](fmt.Errorf("embed: %w", err))
		}
		return fn.Ok(EmbeddedDoc{TaggedDoc: doc, Embedding: vec})
	}
}

// NewStore creates a stage that writes the vector to Qdrant and the topic
// mentions to Neo4j, returning the article key.
func NewStore(idx Index, mentions MentionStore) fn.Stage[EmbeddedDoc, string] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[string] {
		rec := semantic.ArticleRecord{Article: doc.Article, Topics: doc.Topics, Embedding: doc.Embedding}
		if err := idx.Upsert(ctx, []semantic.ArticleRecord{rec}); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert: %w", err))
		}
		if mentions != nil {
			if err := mentions.SaveMentions(ctx, doc.Article, doc.Topics); err != nil {
				return fn.Err[string](fmt.Errorf("graph save: %w", err))
			}
		}
		return fn.Ok(doc.Article.Key())
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[domain.Article, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	retry := deps.Retry
	if retry.MaxAttempts <= 0 {
		retry = fn.DefaultRetry
	}

	// Validate → Tag → Embed (retried) → Store
	validated := fn.Then(LoggedTap[domain.Article]("validate", log), fn.TracedStage("ingest.validate", Validate))
	tagged := fn.Then(validated, fn.TracedStage("ingest.tag", NewTag(NewMatcher(deps.Topics))))
	embedded := fn.Then(tagged, fn.TracedStage("ingest.embed", fn.RetryStage(retry, NewEmbed(deps.Embedder))))
	return fn.Then(embedded, fn.TracedStage("ingest.store", NewStore(deps.Index, deps.Mentions)))
}

// Report summarises a batch run.
type Report struct {
	Ingested []string
	Failed   map[string]error
}

// Run sends every article through the pipeline with bounded concurrency.
// A failing article does not stop the others.
func Run(ctx context.Context, deps Deps, list []domain.Article, workers int) Report {
	pipeline := NewPipeline(deps)
	results := fn.ParMapResult(list, workers, func(a domain.Article) fn.Result[string] {
		return pipeline(ctx, a)
	})

	rep := Report{Failed: make(map[string]error)}
	for i, r := range results {
		key, err := r.Unwrap()
		if err != nil {
			rep.Failed[list[i].Key()] = err
			continue
		}
		rep.Ingested = append(rep.Ingested, key)
	}
	return rep
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Article domain.Article `json:"article"`
	Error   string         `json:"error"`
	Retries int            `json:"retries"`
}

// StartConsumer subscribes to IngestSubject and runs each article through
// the pipeline, re-publishing failures with a retry count and parking them
// on DLQSubject after MaxRetries.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		handleMessage(nc, msg, pipeline, log)
	})
}

// publisher is the part of *nats.Conn the consumer publishes through.
type publisher interface {
	Publish(subject string, data []byte) error
	PublishMsg(m *nats.Msg) error
}

func handleMessage(nc publisher, msg *nats.Msg, pipeline fn.Stage[domain.Article, string], log *slog.Logger) {
	ctx, a, err := natsutil.Decode[domain.Article](msg)
	if err != nil {
		log.Error("ingest: unmarshal failed", "error", err)
		return
	}

	retries := 0
	if msg.Header != nil {
		if v := msg.Header.Get(retryHeader); v != "" {
			retries, _ = strconv.Atoi(v)
		}
	}

	key, err := pipeline(ctx, a).Unwrap()
	if err == nil {
		log.Info("ingest: success", "article", key)
		return
	}

	retries++
	log.Error("ingest: pipeline failed", "error", err, "article", a.Key(), "retry", retries)
	if retries >= MaxRetries {
		data, _ := json.Marshal(dlqMessage{Article: a, Error: err.Error(), Retries: retries})
		if err := nc.Publish(DLQSubject, data); err != nil {
			log.Error("ingest: DLQ publish failed", "error", err)
		}
		return
	}

	retryMsg := nats.NewMsg(IngestSubject)
	retryMsg.Data = msg.Data
	retryMsg.Header = nats.Header{}
	retryMsg.Header.Set(retryHeader, strconv.Itoa(retries))
	if err := nc.PublishMsg(retryMsg); err != nil {
		log.Error("ingest: retry publish failed", "error", err)
	}
}
