package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient adapts the Anthropic messages API.
type anthropicClient struct {
	client anthropic.Client
	cfg    Config
}

func newAnthropicClient(cfg Config) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicClient{
		client: anthropic.NewClient(options...),
		cfg:    cfg,
	}, nil
}

func (c *anthropicClient) Name() string {
	return "anthropic"
}

func (c *anthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	ctx, cancel := callContext(ctx, c.cfg.Timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if t := c.temperature(req); t > 0 {
		params.Temperature = anthropic.Float(float64(t))
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, c.wrapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, NewError(c.Name(), c.cfg.Model, errors.New("no text blocks in response"))
	}

	return &Completion{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (c *anthropicClient) temperature(req *CompletionRequest) float32 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return c.cfg.Temperature
}

func (c *anthropicClient) wrapError(err error) error {
	perr := NewError(c.Name(), c.cfg.Model, err)

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return perr.WithStatus(apiErr.StatusCode)
	}
	return perr
}
