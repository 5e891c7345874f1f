package config

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

type APIConfig struct {
	Host      string `env:"API_HOST" envDefault:"0.0.0.0"`
	Port      int    `env:"API_PORT" envDefault:"8000"`
	SecretKey string `env:"API_SECRET_KEY,required,notEmpty"`
}

func NewAPIConfig(ctx context.Context) *APIConfig {
	c := &APIConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse API config")
	}
	return c
}

func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
