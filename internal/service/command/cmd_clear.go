package command

import (
	"context"
	"fmt"
)

// ClearCommand retires the active session and starts a fresh one. Front-ends that ask for confirmation
// run it only after the user confirms.
type ClearCommand struct {
	conv      Conversations
	formatter *ResponseFormatter
}

func NewClearCommand(conv Conversations) *ClearCommand {
	return &ClearCommand{
		conv:      conv,
		formatter: NewResponseFormatter(),
	}
}

func (c *ClearCommand) Name() string {
	return "clear"
}

func (c *ClearCommand) Description() string {
	return "Clear your conversation history"
}

func (c *ClearCommand) Execute(ctx context.Context, userID int64, args []string) (string, error) {
	id, err := c.conv.Clear(ctx, userID, "")
	if err != nil {
		return "", fmt.Errorf("failed to clear session: %w", err)
	}

	return c.formatter.Combine(
		c.formatter.Success("History Cleared"),
		"Your conversation history has been cleared. You can start a fresh conversation now!",
		c.formatter.Bullet("New session", id),
	), nil
}
