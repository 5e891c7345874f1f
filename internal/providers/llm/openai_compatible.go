package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sandevgo/tuskrelay/internal/core"
)

type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string
}

type OpenAICompatibleConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	return &OpenAICompatible{
		baseProvider: newBaseProvider(cfg.Name, cfg.BaseURL, cfg.APIKey, cfg.Model),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		extraHeaders: cfg.ExtraHeaders,
	}
}

type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []core.Message `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message core.Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (o *OpenAICompatible) Complete(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
	payload := chatRequest{
		Model:       o.model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, headers)
	if err != nil {
		return core.Completion{}, err
	}

	data, err := o.readBody(ctx, resp)
	if err != nil {
		return core.Completion{}, err
	}
	return o.parse(ctx, data)
}

func (o *OpenAICompatible) parse(ctx context.Context, data []byte) (core.Completion, error) {
	var result chatResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Completion{}, o.fail(ctx, 0, fmt.Errorf("decode: %w", err))
	}
	if len(result.Choices) == 0 {
		return core.Completion{}, o.fail(ctx, 0, fmt.Errorf("empty choices: %s", truncateBody(data)))
	}

	tokens := result.Usage.TotalTokens
	if tokens == 0 {
		tokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
	}

	return core.Completion{
		Content:    result.Choices[0].Message.Content,
		TokensUsed: tokens,
	}, nil
}
