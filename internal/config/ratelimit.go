package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

type RateLimitConfig struct {
	Messages int           `env:"RATE_LIMIT_MESSAGES" envDefault:"10"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}

func NewRateLimitConfig(ctx context.Context) *RateLimitConfig {
	c := &RateLimitConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse rate limit config")
	}
	return c
}
