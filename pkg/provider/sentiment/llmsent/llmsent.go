// Package llmsent provides a sentiment.Analyzer backed by
// github.com/mozilla-ai/any-llm-go, the unified multi-provider LLM interface
// (OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more).
//
// The model is prompted to reply with a single decimal number; anything that
// does not parse as a value in [0, 1] is an error, which callers convert to
// the neutral fallback.
//
// Usage:
//
//	a, err := llmsent.New("ollama", "llama3.2", anyllmlib.WithBaseURL("http://localhost:11434"))
//	score, err := a.Analyze(ctx, "I really enjoyed leading that project.")
package llmsent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/talentlens/talentlens/pkg/provider/sentiment"
)

const systemPrompt = "You rate the sentiment of interview answers. " +
	"Reply with a single decimal number between 0.0 (very negative) and 1.0 " +
	"(very positive), where 0.5 is neutral. Reply with the number only."

// Compile-time assertion that Analyzer implements sentiment.Analyzer.
var _ sentiment.Analyzer = (*Analyzer)(nil)

// Analyzer implements sentiment.Analyzer by asking an LLM for a score.
type Analyzer struct {
	backend anyllmlib.Provider
	model   string
}

// New creates an Analyzer backed by the given LLM provider name, one of:
// "openai", "anthropic", "gemini", "ollama", "mistral", "groq".
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). Without an API key option, the provider falls back
// to its usual environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, …).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Analyzer, error) {
	if providerName == "" {
		return nil, fmt.Errorf("llmsent: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llmsent: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llmsent: create %q backend: %w", providerName, err)
	}
	return &Analyzer{backend: backend, model: model}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral, groq", providerName)
	}
}

// Analyze implements sentiment.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, text string) (sentiment.Score, error) {
	temperature := 0.0
	maxTokens := 8

	resp, err := a.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: a.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return sentiment.Score{}, fmt.Errorf("llmsent: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return sentiment.Score{}, fmt.Errorf("llmsent: empty choices in response")
	}

	return parseScore(resp.Choices[0].Message.ContentString())
}

// parseScore extracts the decimal score from a model reply.
func parseScore(reply string) (sentiment.Score, error) {
	fields := strings.Fields(strings.TrimSpace(reply))
	if len(fields) == 0 {
		return sentiment.Score{}, fmt.Errorf("llmsent: empty reply")
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "."), 64)
	if err != nil {
		return sentiment.Score{}, fmt.Errorf("llmsent: parse reply %q: %w", reply, err)
	}
	if value < 0 || value > 1 {
		return sentiment.Score{}, fmt.Errorf("llmsent: score %f out of [0, 1]", value)
	}
	return sentiment.Score{Value: value, Label: sentiment.LabelFor(value)}, nil
}
