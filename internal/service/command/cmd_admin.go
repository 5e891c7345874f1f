package command

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

const (
	AdminStats   = "stats"
	AdminCleanup = "cleanup"
)

type AdminCommand struct {
	conv      Conversations
	policy    core.AccessPolicy
	timeout   time.Duration
	formatter *ResponseFormatter
}

func NewAdminCommand(conv Conversations, policy core.AccessPolicy, sessionTimeout time.Duration) *AdminCommand {
	return &AdminCommand{
		conv:      conv,
		policy:    policy,
		timeout:   sessionTimeout,
		formatter: NewResponseFormatter(),
	}
}

func (c *AdminCommand) Name() string {
	return "admin"
}

func (c *AdminCommand) Description() string {
	return "Admin panel (admins only)"
}

func (c *AdminCommand) Execute(ctx context.Context, userID int64, args []string) (string, error) {
	if !c.policy.IsAdmin(userID) {
		return "❌ Admin access required.", nil
	}

	action := ""
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "":
		return c.panel(ctx)
	case AdminStats:
		return c.detailed(ctx)
	case AdminCleanup:
		n, err := c.conv.ReapExpired(ctx, c.timeout)
		if err != nil {
			return "", fmt.Errorf("cleanup failed: %w", err)
		}
		return c.formatter.Combine(
			c.formatter.Success("Cleanup Complete"),
			fmt.Sprintf("Expired sessions deactivated: %d", n),
		), nil
	default:
		return c.formatter.Usage("/admin [stats|cleanup]"), nil
	}
}

func (c *AdminCommand) panel(ctx context.Context) (string, error) {
	stats, err := c.conv.GlobalStats(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load stats: %w", err)
	}

	return c.formatter.Combine(
		c.formatter.Info("🔧", "Admin Panel"),
		c.formatter.Section("📈", "System Statistics:",
			c.formatter.Bullet("Total Users", stats.TotalUsers)+
				c.formatter.Bullet("Total Conversations", stats.TotalConversations)+
				c.formatter.Bullet("Active Sessions", stats.ActiveSessions)),
	), nil
}

func (c *AdminCommand) detailed(ctx context.Context) (string, error) {
	stats, err := c.conv.GlobalStats(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load stats: %w", err)
	}

	return c.formatter.Combine(
		c.formatter.Info("📊", "Detailed System Statistics"),
		c.formatter.Section("⚡", "Usage:",
			c.formatter.Bullet("Total Tokens Used", Thousands(stats.TotalTokens))+
				c.formatter.Bullet("Active Users (7 days)", stats.ActiveUsers7d)+
				c.formatter.Bullet("Average Tokens per Message", fmt.Sprintf("%.1f", stats.AvgTokensPerMessage))),
		c.formatter.Section("🗄", "Database:",
			c.formatter.Bullet("Total Users", stats.TotalUsers)+
				c.formatter.Bullet("Total Conversations", stats.TotalConversations)+
				c.formatter.Bullet("Active Sessions", stats.ActiveSessions)),
	), nil
}
