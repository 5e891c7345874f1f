package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sandevgo/tuskrelay/internal/core"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

type Anthropic struct {
	baseProvider
}

func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		baseProvider: newBaseProvider("anthropic", "https://api.anthropic.com", apiKey, model),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete uses the native messages API. System messages are lifted into the system field.
func (a *Anthropic) Complete(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
	payload := anthropicRequest{
		Model:       a.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = anthropicMaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == core.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		payload.Messages = append(payload.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	payload.System = strings.Join(system, "\n\n")

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	resp, err := a.doRequest(ctx, http.MethodPost, "/v1/messages", payload, headers)
	if err != nil {
		return core.Completion{}, err
	}

	data, err := a.readBody(ctx, resp)
	if err != nil {
		return core.Completion{}, err
	}

	var result anthropicResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Completion{}, a.fail(ctx, 0, fmt.Errorf("decode: %w", err))
	}

	var text strings.Builder
	for _, c := range result.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return core.Completion{}, a.fail(ctx, 0, fmt.Errorf("empty content: %s", truncateBody(data)))
	}

	return core.Completion{
		Content:    text.String(),
		TokensUsed: result.Usage.InputTokens + result.Usage.OutputTokens,
	}, nil
}
