package command

import (
	"context"
	"fmt"
)

type StatsCommand struct {
	conv      Conversations
	formatter *ResponseFormatter
}

func NewStatsCommand(conv Conversations) *StatsCommand {
	return &StatsCommand{
		conv:      conv,
		formatter: NewResponseFormatter(),
	}
}

func (c *StatsCommand) Name() string {
	return "stats"
}

func (c *StatsCommand) Description() string {
	return "View your usage statistics"
}

func (c *StatsCommand) Execute(ctx context.Context, userID int64, args []string) (string, error) {
	stats, err := c.conv.Stats(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load stats: %w", err)
	}

	return c.formatter.Combine(
		c.formatter.Info("📊", "Your Usage Statistics"),
		c.formatter.Bullet("Total Messages", stats.TotalMessages)+
			c.formatter.Bullet("Tokens Used", Thousands(stats.TotalTokens))+
			c.formatter.Bullet("Processing Time", fmt.Sprintf("%.1fs", float64(stats.TotalProcessingMs)/1000))+
			c.formatter.Bullet("Active Sessions", stats.ActiveSessionCount),
	), nil
}
