package command

import (
	"context"
)

const welcomeText = `🤖 **Welcome to AI Assistant Bot!**

I'm your AI assistant powered by advanced language models.

**What I can help you with:**
• Answer questions on any topic
• Provide summaries and explanations
• Help with task planning and automation
• General conversation and brainstorming

**Commands:**
/help - Show available commands
/stats - View your usage statistics
/clear - Clear conversation history

Just send me a message and I'll respond!`

type StartCommand struct{}

func NewStartCommand() *StartCommand {
	return &StartCommand{}
}

func (c *StartCommand) Name() string {
	return "start"
}

func (c *StartCommand) Description() string {
	return "Initialize the bot"
}

func (c *StartCommand) Execute(ctx context.Context, userID int64, args []string) (string, error) {
	return welcomeText, nil
}
