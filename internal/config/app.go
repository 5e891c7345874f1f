package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const DefaultSystemPrompt = "You are a helpful AI assistant integrated with Telegram. Provide clear, concise, and helpful responses."

type AppConfig struct {
	RuntimePath string `env:"RELAY_RUNTIME_PATH" envDefault:".tuskrelay"`

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableAPI      bool `env:"ENABLE_API" envDefault:"true"`

	// Context Management
	ContextMaxMessages int           `env:"CONTEXT_MAX_MESSAGES" envDefault:"20"`
	SessionTimeout     time.Duration `env:"SESSION_TIMEOUT" envDefault:"1h"`
	SystemPrompt       string        `env:"SYSTEM_PROMPT"`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	ReapInterval       time.Duration `env:"REAP_INTERVAL" envDefault:"0s"`

	// Model call
	ModelTimeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"30s"`
	MaxTokens    int           `env:"MAX_TOKENS" envDefault:"1000"`

	// Background tasks
	WorkerPoolSize  int `env:"WORKER_POOL_SIZE" envDefault:"4"`
	WorkerQueueSize int `env:"WORKER_QUEUE_SIZE" envDefault:"64"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c, err := ParseAppConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func ParseAppConfig() (*AppConfig, error) {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(c.RuntimePath) {
		c.RuntimePath = GetRuntimePath()
	}
	if c.ContextMaxMessages < 2 {
		c.ContextMaxMessages = 2
	}
	return c, nil
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "tuskrelay.db")
}

func (c AppConfig) GetContextMaxMessages() int {
	return c.ContextMaxMessages
}

func (c AppConfig) GetSessionTimeout() time.Duration {
	return c.SessionTimeout
}

func (c AppConfig) GetSystemPrompt() string {
	if c.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return c.SystemPrompt
}

func (c AppConfig) GetModelTimeout() time.Duration {
	return c.ModelTimeout
}

func (c AppConfig) GetMaxTokens() int {
	return c.MaxTokens
}

func (c AppConfig) IsTelegramSelected() bool {
	return c.EnableTelegram
}

func (c AppConfig) IsAPISelected() bool {
	return c.EnableAPI
}
