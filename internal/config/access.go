package config

import (
	"context"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

// AccessConfig is the binary allow/deny policy. An empty whitelist allows everyone.
type AccessConfig struct {
	WhitelistedUsers []int64 `env:"WHITELISTED_USERS" envSeparator:","`
	AdminUserIDs     []int64 `env:"ADMIN_USER_IDS" envSeparator:","`
}

func NewAccessConfig(ctx context.Context) *AccessConfig {
	c := &AccessConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse access config")
	}
	return c
}

func (c AccessConfig) IsAllowed(userID int64) bool {
	if len(c.WhitelistedUsers) == 0 {
		return true
	}
	return slices.Contains(c.WhitelistedUsers, userID) || c.IsAdmin(userID)
}

func (c AccessConfig) IsAdmin(userID int64) bool {
	return slices.Contains(c.AdminUserIDs, userID)
}
