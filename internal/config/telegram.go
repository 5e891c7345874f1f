package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

type TelegramConfig struct {
	Token         string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	WebhookURL    string `env:"TELEGRAM_WEBHOOK_URL"`
	WebhookListen string `env:"TELEGRAM_WEBHOOK_LISTEN" envDefault:":8443"`
}

func NewTelegramConfig(ctx context.Context) *TelegramConfig {
	c := &TelegramConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Telegram config")
	}
	return c
}

func (c TelegramConfig) UseWebhook() bool {
	return c.WebhookURL != ""
}
