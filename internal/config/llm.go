package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

var defaultModels = map[string]string{
	"groq":       "llama-3.3-70b-versatile",
	"openai":     "gpt-3.5-turbo",
	"openrouter": "meta-llama/llama-3.3-70b-instruct",
	"anthropic":  "claude-3-5-haiku-latest",
	"ollama":     "llama3.2",
}

type LLMConfig struct {
	Provider    string  `env:"LLM_PROVIDER" envDefault:"groq"`
	Model       string  `env:"LLM_MODEL"`
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`

	GroqAPIKey          string `env:"GROQ_API_KEY"`
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey    string `env:"OPENROUTER_API_KEY"`
	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	OllamaAPIKey        string `env:"OLLAMA_API_KEY"`
	OllamaBaseURL       string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	CustomOpenAIBaseURL string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomOpenAIAPIKey  string `env:"CUSTOM_OPENAI_API_KEY"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c, err := ParseLLMConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}

func ParseLLMConfig() (*LLMConfig, error) {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	if c.Model == "" {
		c.Model = defaultModels[c.Provider]
	}
	return c, nil
}

func (c LLMConfig) GetProvider() string {
	return c.Provider
}

func (c LLMConfig) GetModel() string {
	return c.Model
}

func (c LLMConfig) GetTemperature() float64 {
	return c.Temperature
}
