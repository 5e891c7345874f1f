package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

// NewProvider creates the model backend selected by configuration.
func NewProvider(ctx context.Context, cfg *config.LLMConfig) (core.ModelBackend, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("starting llm provider")

	if cfg.Model == "" {
		return nil, fmt.Errorf("llm provider %s: model is not set", cfg.Provider)
	}

	switch cfg.Provider {
	case "groq":
		return NewGroq(cfg.GroqAPIKey, cfg.Model), nil
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.Model), nil
	case "openrouter":
		return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.Model), nil
	case "ollama":
		return NewOllama(cfg.OllamaBaseURL, cfg.OllamaAPIKey, cfg.Model), nil
	case "custom":
		if cfg.CustomOpenAIBaseURL == "" {
			return nil, fmt.Errorf("custom llm provider: CUSTOM_OPENAI_BASE_URL is not set")
		}
		return NewCustomOpenAI(cfg.CustomOpenAIBaseURL, cfg.CustomOpenAIAPIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
