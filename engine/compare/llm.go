package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/astrobio/progression/engine/domain"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const llmSystemPrompt = `You are a scientific paper comparison expert. Return only a JSON array of two integers between 1-100.`

const llmUserPrompt = `Compare these two research articles on methodology and results. Return ONLY a JSON array with two integers.

Article 1: %s
Keywords: %s
Summary: %s

Article 2: %s
Keywords: %s
Summary: %s

Scoring criteria (1-100):
- 90-100: Nearly identical approaches/findings
- 70-89: Very similar with minor differences
- 50-69: Moderately similar
- 30-49: Some overlap but substantially different
- 10-29: Minimal similarities
- 1-9: Completely different

Return format: [methodology_score, results_score]`

// Completer sends a system and user prompt to a chat model and returns the
// reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLM asks a chat model to score methodology and results similarity.
// Correlation is [methodology/100, results/100] and the agreement is their
// mean.
type LLM struct {
	completer Completer
}

// NewLLM wraps a Completer.
func NewLLM(c Completer) *LLM { return &LLM{completer: c} }

// Compare implements Provider.
func (l *LLM) Compare(ctx context.Context, a, b domain.Article) (Result, error) {
	ctx, span := otel.Tracer("engine/compare").Start(ctx, "compare.llm")
	defer span.End()

	user := fmt.Sprintf(llmUserPrompt,
		a.Title, strings.Join(a.Keywords, ", "), truncate(a.Summary, 1500),
		b.Title, strings.Join(b.Keywords, ", "), truncate(b.Summary, 1500),
	)
	reply, err := l.completer.Complete(ctx, llmSystemPrompt, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("compare: llm: %w", err)
	}
	method, results, err := parseScores(reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	return Result{
		Correlation:    []float64{float64(method) / 100, float64(results) / 100},
		SharedKeywords: SharedKeywords(a, b),
		AgreementPct:   float64(method+results) / 2,
	}, nil
}

// parseScores reads "[m, r]" from a model reply, tolerating code fences,
// and clamps both scores to 1–100.
func parseScores(reply string) (int, int, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var scores []float64
	if err := json.Unmarshal([]byte(cleaned), &scores); err != nil {
		return 0, 0, fmt.Errorf("compare: parse scores %q: %w", reply, err)
	}
	if len(scores) != 2 {
		return 0, 0, fmt.Errorf("compare: expected 2 scores, got %d", len(scores))
	}
	return clampScore(scores[0]), clampScore(scores[1]), nil
}

// clampScore bounds v to [1, 100], then truncates.
func clampScore(v float64) int {
	return int(min(max(v, 1), 100))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// OpenAI is a Completer backed by the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  openai.ChatModel
}

// NewOpenAI creates an OpenAI completer. An empty model uses gpt-4o-mini.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	m := openai.ChatModelGPT4oMini
	if model != "" {
		m = openai.ChatModel(model)
	}
	return &OpenAI{client: &client, model: m}
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.2),
		MaxTokens:   openai.Int(60),
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
