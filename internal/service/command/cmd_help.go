package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskrelay/internal/core"
)

type HelpCommand struct {
	list      func() []core.Command
	formatter *ResponseFormatter
}

func NewHelpCommand(list func() []core.Command) *HelpCommand {
	return &HelpCommand{
		list:      list,
		formatter: NewResponseFormatter(),
	}
}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Description() string {
	return "Show this help message"
}

func (c *HelpCommand) Execute(ctx context.Context, userID int64, args []string) (string, error) {
	var items []string
	for _, cmd := range c.list() {
		items = append(items, fmt.Sprintf("`/%s` - %s", cmd.Name(), cmd.Description()))
	}

	return c.formatter.Combine(
		c.formatter.Info("🆘", "Help & Commands"),
		c.formatter.Section("📋", "Available Commands:", c.formatter.List(items)),
		c.formatter.Tip("Just send me any message. Your conversation context is kept until you /clear it."),
	), nil
}
