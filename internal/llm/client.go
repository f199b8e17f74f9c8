// Package llm implements the text-generation collaborator over langchaingo,
// plus the response hygiene the rest of the pipeline relies on: markdown
// fence stripping and tolerant JSON extraction.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Config holds the settings for the generation client.
type Config struct {
	// BaseURL points at any OpenAI-compatible completion endpoint.
	BaseURL string
	Model   string
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
	// Timeout bounds every Generate call. A hung endpoint must not block
	// the orchestrator indefinitely.
	Timeout time.Duration
}

// Client is a TextGenerator backed by a langchaingo model.
type Client struct {
	model   llms.Model
	timeout time.Duration
	log     *zap.Logger
}

// New creates a Client from config. The API key is read from the configured
// environment variable at construction time.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
	}
	if key := os.Getenv(cfg.APIKeyEnv); key != "" {
		opts = append(opts, openai.WithToken(key))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return &Client{model: model, timeout: cfg.Timeout, log: log}, nil
}

// NewWithModel wraps an existing model, mainly for tests.
func NewWithModel(model llms.Model, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{model: model, timeout: timeout, log: log}
}

// Generate produces a completion for the prompt with the configured timeout.
// Temperature is pinned to zero: the pipeline wants reproducible artifacts,
// not creative ones.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	c.log.Debug("generation complete",
		zap.Int("prompt_bytes", len(prompt)),
		zap.Int("response_bytes", len(resp)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}
