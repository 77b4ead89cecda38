// Package provider adapts external LLM APIs behind a single-shot
// completion interface. Clients perform no internal retries; retry and
// backoff policy belongs to the orchestrator so that clients stay
// composable and trivially stubbed in tests.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CompletionRequest describes one text-generation call.
type CompletionRequest struct {
	// System is the system prompt, empty for none.
	System string

	// Prompt is the rendered user prompt.
	Prompt string

	// MaxTokens bounds the response length. Zero uses the client default.
	MaxTokens int

	// Temperature controls sampling. Evaluation runs keep it low.
	Temperature float32
}

// Completion is the raw provider response.
type Completion struct {
	// Text is the raw model output, unparsed.
	Text string

	// Model is the model that actually served the request.
	Model string

	// InputTokens and OutputTokens report usage when the provider
	// returns it, zero otherwise.
	InputTokens  int
	OutputTokens int
}

// Client is a single-shot LLM completion client.
//
// Complete returns the raw response text or a *Error classified for
// retry decisions. Implementations must respect ctx cancellation and
// must not retry internally.
type Client interface {
	// Name identifies the backend for logging and metrics.
	Name() string

	// Complete performs one completion call.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// Config configures a provider client.
type Config struct {
	// Provider selects the backend: "openai", "anthropic" or "gemini".
	Provider string `yaml:"provider"`

	// APIKey is the bearer credential for the backend.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier. Empty uses the backend default.
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint (proxies, compatible servers).
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-call deadline. Exceeding it surfaces as a
	// retryable timeout error.
	Timeout time.Duration `yaml:"timeout"`

	// MaxTokens is the default response budget.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the default sampling temperature.
	Temperature float32 `yaml:"temperature"`
}

// New builds a client for the configured backend.
func New(cfg Config) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	case "gemini", "google":
		return newGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// callContext applies the per-call timeout from config.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
