package telegram

import (
	"context"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/conv"
	"github.com/sandevgo/tuskrelay/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const (
	clearPrompt    = "⚠️ **Clear Conversation History**\n\nThis will clear your conversation history and end your current session. Are you sure you want to continue?"
	clearCancelled = "✅ **Cancelled**\n\nYour conversation history remains intact."
	typingInterval = 4 * time.Second
)

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := b.ctx(c)
	userID := c.Sender().ID

	// Notify user we are working
	stop := b.keepTyping(c)
	reply := b.reply(ctx, userID, c.Text())
	stop()

	return b.sender.sendMarkdown(ctx, c.Recipient(), reply)
}

// reply answers one text message: commands go to the router, everything else
// is admitted and handed to the engine.
func (b *Bot) reply(ctx context.Context, userID int64, text string) string {
	if out, ok := b.deps.Router.Execute(ctx, userID, text); ok {
		return out
	}

	if d := b.deps.Chat.Admit(ctx, userID); !d.Allowed {
		return d.Message
	}

	res := b.deps.Engine.Process(ctx, userID, text, "")
	if !res.Success {
		return "❌ " + core.GenericFailureMessage
	}

	log.FromCtx(ctx).Info().
		Int64("user_id", userID).
		Int("tokens", res.TokensUsed).
		Msg("response sent")
	return res.Response
}

func (b *Bot) keepTyping(c tele.Context) func() {
	_ = c.Notify(tele.Typing)

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(typingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				_ = c.Notify(tele.Typing)
			}
		}
	}()
	return func() { close(done) }
}

func (b *Bot) handleClear(c tele.Context) error {
	return b.sendWithMenu(c, clearPrompt, b.clearMenu)
}

func (b *Bot) handleClearConfirm(c tele.Context) error {
	_ = c.Respond()
	out, _ := b.deps.Router.Execute(b.ctx(c), c.Sender().ID, "/clear")
	return b.edit(c, out)
}

func (b *Bot) handleClearCancel(c tele.Context) error {
	_ = c.Respond()
	return b.edit(c, clearCancelled)
}

func (b *Bot) handleAdmin(c tele.Context) error {
	ctx := b.ctx(c)
	userID := c.Sender().ID
	out, _ := b.deps.Router.Execute(ctx, userID, c.Text())

	if c.Message().Payload == "" && b.deps.Admin.Admit(ctx, userID).Allowed {
		return b.sendWithMenu(c, out, b.adminMenu)
	}
	return b.sender.sendMarkdown(ctx, c.Recipient(), out)
}

func (b *Bot) handleAdminCallback(command string) tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond()
		out, _ := b.deps.Router.Execute(b.ctx(c), c.Sender().ID, command)
		return b.edit(c, out)
	}
}

func (b *Bot) sendWithMenu(c tele.Context, md string, menu *tele.ReplyMarkup) error {
	return b.sender.sendMarkdown(b.ctx(c), c.Recipient(), md, menu)
}

func (b *Bot) edit(c tele.Context, md string) error {
	if err := c.Edit(conv.MarkdownToTelegramHTML(md), tele.ModeHTML); err != nil {
		log.FromCtx(b.ctx(c)).Warn().Err(err).Msg("failed to edit message, sending new one")
		return b.sender.sendMarkdown(b.ctx(c), c.Recipient(), md)
	}
	return nil
}
