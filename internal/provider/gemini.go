package provider

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// geminiClient adapts the Google Gen AI SDK.
type geminiClient struct {
	client *genai.Client
	cfg    Config
}

func newGeminiClient(cfg Config) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, err
	}

	return &geminiClient{client: client, cfg: cfg}, nil
}

func (c *geminiClient) Name() string {
	return "gemini"
}

func (c *geminiClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	ctx, cancel := callContext(ctx, c.cfg.Timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.cfg.Temperature
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     genai.Ptr(temperature),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, c.wrapError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, NewError(c.Name(), c.cfg.Model, errors.New("no text in response"))
	}

	completion := &Completion{Text: text, Model: c.cfg.Model}
	if resp.UsageMetadata != nil {
		completion.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		completion.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return completion, nil
}

func (c *geminiClient) wrapError(err error) error {
	perr := NewError(c.Name(), c.cfg.Model, err)

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return perr.WithStatus(apiErr.Code)
	}
	return perr
}
