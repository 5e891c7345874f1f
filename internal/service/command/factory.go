package command

import (
	"context"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

// Conversations is the slice of the conversation engine the commands use.
type Conversations interface {
	Stats(ctx context.Context, userID int64) (core.UserStats, error)
	GlobalStats(ctx context.Context) (core.GlobalStats, error)
	ActiveSession(ctx context.Context, userID int64) (string, error)
	Clear(ctx context.Context, userID int64, sessionID string) (string, error)
	ReapExpired(ctx context.Context, timeout time.Duration) (int, error)
}

func NewRouter(
	conv Conversations,
	policy core.AccessPolicy,
	sessionTimeout time.Duration,
) *Router {
	var router *Router
	list := func() []core.Command { return router.ListCommands() }

	router = New([]core.Command{
		NewStartCommand(),
		NewHelpCommand(list),
		NewStatsCommand(conv),
		NewSessionCommand(conv),
		NewClearCommand(conv),
		NewAdminCommand(conv, policy, sessionTimeout),
	})
	return router
}
