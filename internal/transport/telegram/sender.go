package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/sandevgo/tuskrelay/pkg/conv"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/pkg/retry"
	tele "gopkg.in/telebot.v3"
)

const maxTelegramMsgLen = 4000 // Safety margin below 4096

// messenger is the part of *tele.Bot the sender needs.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type sender struct {
	bot     messenger
	retrier *retry.Retrier
}

func newSender(bot messenger) *sender {
	return &sender{
		bot: bot,
		retrier: retry.NewRetrier(&retry.Config{
			MaxRetries:    2,
			BackoffFactor: 2,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      3 * time.Second,
			Jitter:        100 * time.Millisecond,
		}),
	}
}

// sendMarkdown converts Markdown to Telegram HTML and sends it in chunks.
// A chunk Telegram refuses to parse is resent as plain text.
func (s *sender) sendMarkdown(ctx context.Context, to tele.Recipient, md string, opts ...interface{}) error {
	logger := log.FromCtx(ctx)
	html := conv.MarkdownToTelegramHTML(md)
	if html == "" {
		html = md
	}

	chunks := conv.SplitMessage(html, maxTelegramMsgLen)
	for i, chunk := range chunks {
		// markup goes on the last chunk only
		var extra []interface{}
		if i == len(chunks)-1 {
			extra = opts
		}

		err := s.send(ctx, to, chunk, append([]interface{}{tele.ModeHTML}, extra...)...)
		if err == nil {
			continue
		}

		logger.Warn().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("html rejected, sending plain text")
		if err := s.send(ctx, to, conv.HTMLToText(chunk), extra...); err != nil {
			logger.Error().Err(err).Int("chunk", i).Msg("failed to send telegram chunk")
			return err
		}
	}
	return nil
}

// send retries only when Telegram asks to slow down or the network fails.
func (s *sender) send(ctx context.Context, to tele.Recipient, what string, opts ...interface{}) error {
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := s.bot.Send(to, what, opts...)
		if err == nil {
			return nil
		}

		var flood tele.FloodError
		if errors.As(err, &flood) {
			return err
		}
		var tgErr *tele.Error
		if errors.As(err, &tgErr) {
			return retry.Permanent(err)
		}
		return err
	})
}
