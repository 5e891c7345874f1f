package command

import (
	"context"
	"fmt"
)

type SessionCommand struct {
	conv      Conversations
	formatter *ResponseFormatter
}

func NewSessionCommand(conv Conversations) *SessionCommand {
	return &SessionCommand{
		conv:      conv,
		formatter: NewResponseFormatter(),
	}
}

func (c *SessionCommand) Name() string {
	return "session"
}

func (c *SessionCommand) Description() string {
	return "Show your active session"
}

func (c *SessionCommand) Execute(ctx context.Context, userID int64, args []string) (string, error) {
	id, err := c.conv.ActiveSession(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	if id == "" {
		return c.formatter.Combine(
			c.formatter.Info("💬", "No Active Session"),
			c.formatter.Tip("Send a message to start one."),
		), nil
	}

	return c.formatter.Combine(
		c.formatter.Info("💬", "Current Session"),
		c.formatter.Label("Session", id),
	), nil
}
