package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

type Router struct {
	commands map[string]core.Command
}

func New(commands []core.Command) *Router {
	c := &Router{
		commands: make(map[string]core.Command),
	}

	for _, cmd := range commands {
		c.commands[cmd.Name()] = cmd
	}
	return c
}

// Execute runs input when it is a slash command. The bool reports whether input was handled.
func (c *Router) Execute(ctx context.Context, userID int64, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	// telegram appends the bot name in groups: /stats@tusk_bot
	name, _, _ := strings.Cut(strings.TrimPrefix(parts[0], "/"), "@")
	args := parts[1:]

	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s", name), true
	}

	result, err := cmd.Execute(ctx, userID, args)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("command", name).Int64("user_id", userID).Msg("command failed")
		return NewResponseFormatter().Error(name, err), true
	}
	return result, true
}

// ListCommands returns the registered commands sorted by name.
func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}
