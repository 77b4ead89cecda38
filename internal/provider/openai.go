package provider

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// openaiClient adapts the OpenAI chat completions API.
type openaiClient struct {
	client *openai.Client
	cfg    Config
}

func newOpenAIClient(cfg Config) (*openaiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &openaiClient{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (c *openaiClient) Name() string {
	return "openai"
}

func (c *openaiClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	ctx, cancel := callContext(ctx, c.cfg.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.maxTokens(req),
		Temperature: c.temperature(req),
	})
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(c.Name(), c.cfg.Model, errors.New("empty choices in response"))
	}

	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *openaiClient) maxTokens(req *CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.cfg.MaxTokens
}

func (c *openaiClient) temperature(req *CompletionRequest) float32 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return c.cfg.Temperature
}

// wrapError lifts SDK errors into the shared taxonomy, preferring the
// HTTP status when the SDK surfaces one.
func (c *openaiClient) wrapError(err error) error {
	perr := NewError(c.Name(), c.cfg.Model, err)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return perr.WithStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return perr.WithStatus(reqErr.HTTPStatusCode)
	}
	return perr
}
