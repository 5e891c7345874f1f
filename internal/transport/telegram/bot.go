package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/admission"
	"github.com/sandevgo/tuskrelay/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

// Conversations is what the bot needs from the conversation engine.
type Conversations interface {
	Process(ctx context.Context, userID int64, message, sessionID string) core.ConversationResult
}

// Submitter dispatches side work that must not delay the reply.
type Submitter interface {
	Submit(name string, fn func(ctx context.Context) error) error
}

type Deps struct {
	Engine Conversations
	Router core.CmdRouter
	// Access runs on every update, Chat on plain text before the model is called.
	Access *admission.Pipeline
	Chat   *admission.Pipeline
	Admin  *admission.Pipeline
	Users  core.UserRepository
	Tasks  Submitter
}

type Bot struct {
	bot    *tele.Bot
	cfg    *config.TelegramConfig
	deps   Deps
	sender *sender

	clearMenu *tele.ReplyMarkup
	adminMenu *tele.ReplyMarkup
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	deps Deps,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.FromCtx(ctx).Error().Err(err).Msg("telegram handler failed")
		},
	}
	if cfg.UseWebhook() {
		pref.Poller = &tele.Webhook{
			Listen:      cfg.WebhookListen,
			DropUpdates: true,
			Endpoint:    &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return newBot(ctx, b, cfg, deps), nil
}

func newBot(ctx context.Context, b *tele.Bot, cfg *config.TelegramConfig, deps Deps) *Bot {
	bot := &Bot{
		bot:    b,
		cfg:    cfg,
		deps:   deps,
		sender: newSender(b),
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: remember who talks to us, off the reply path
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); u != nil {
				bot.trackUser(bot.ctx(c), u)
			}
			return next(c)
		}
	})

	// Middleware: allow-list
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil {
				return nil
			}
			if d := deps.Access.Admit(bot.ctx(c), c.Sender().ID); !d.Allowed {
				return bot.sender.sendMarkdown(bot.ctx(c), c.Recipient(), d.Message)
			}
			return next(c)
		}
	})

	bot.clearMenu = &tele.ReplyMarkup{}
	btnClear := bot.clearMenu.Data("✅ Yes, Clear History", "clear_confirm")
	btnCancel := bot.clearMenu.Data("❌ Cancel", "clear_cancel")
	bot.clearMenu.Inline(bot.clearMenu.Row(btnClear, btnCancel))

	bot.adminMenu = &tele.ReplyMarkup{}
	btnStats := bot.adminMenu.Data("📊 Detailed Stats", "admin_stats")
	btnCleanup := bot.adminMenu.Data("🧹 Cleanup Sessions", "admin_cleanup")
	bot.adminMenu.Inline(bot.adminMenu.Row(btnStats), bot.adminMenu.Row(btnCleanup))

	b.Handle("/clear", bot.handleClear)
	b.Handle("/admin", bot.handleAdmin)
	b.Handle(&btnClear, bot.handleClearConfirm)
	b.Handle(&btnCancel, bot.handleClearCancel)
	b.Handle(&btnStats, bot.handleAdminCallback("/admin stats"))
	b.Handle(&btnCleanup, bot.handleAdminCallback("/admin cleanup"))
	b.Handle(tele.OnText, bot.handleMessage)

	return bot
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Bool("webhook", b.cfg.UseWebhook()).Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) ctx(c tele.Context) context.Context {
	if ctx, ok := c.Get(baseContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func (b *Bot) trackUser(ctx context.Context, u *tele.User) {
	if b.deps.Users == nil || b.deps.Tasks == nil {
		return
	}

	profile := core.UserProfile{
		TelegramUserID: u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
	}
	err := b.deps.Tasks.Submit("upsert_user", func(ctx context.Context) error {
		return b.deps.Users.UpsertUser(ctx, profile)
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Int64("user_id", u.ID).Msg("profile update dropped")
	}
}
