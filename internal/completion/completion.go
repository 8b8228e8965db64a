// Package completion provides the text-completion backend used by agents
// for classification, summarization, and sentiment.
//
// The backend is any OpenAI-compatible endpoint. Completion is an optional
// capability: when no API key is configured, callers receive a nil client
// and fall back to heuristic behavior.
package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/trendd/internal/config"
)

// Client generates a completion for a single prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// llmClient adapts a langchaingo model to the Client interface.
type llmClient struct {
	llm   llms.Model
	model string
}

// New creates a completion client from config.
//
// Returns (nil, nil) when no API key is configured. Callers must treat a
// nil client as "completion unavailable", not as an error.
func New(cfg *config.CompletionConfig) (Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, nil
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	return &llmClient{llm: llm, model: cfg.Model}, nil
}

func (c *llmClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(0.2),
	)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}
