package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/session"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const (
	defaultModelTimeout = 30 * time.Second
	activeUsersWindow   = 7 * 24 * time.Hour
)

type Config struct {
	ModelTimeout time.Duration
	MaxTokens    int
	Temperature  float64
}

// Engine runs one conversational turn at a time per session.
type Engine struct {
	sessions *session.Manager
	backend  core.ModelBackend
	tokens   core.TokenEstimator
	audit    core.ConversationRepository
	cfg      Config
	now      func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	sessions *session.Manager,
	backend core.ModelBackend,
	tokens core.TokenEstimator,
	audit core.ConversationRepository,
	cfg Config,
	opts ...Option,
) *Engine {
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = defaultModelTimeout
	}
	e := &Engine{
		sessions: sessions,
		backend:  backend,
		tokens:   tokens,
		audit:    audit,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs a full turn. Errors never escape: they are reported in the result.
// The context and the audit log change only when the model call and the commit both succeed.
func (e *Engine) Process(ctx context.Context, userID int64, message, sessionID string) core.ConversationResult {
	start := e.now()

	if strings.TrimSpace(message) == "" {
		return e.failed(ctx, start, sessionID, fmt.Errorf("%w: empty message", core.ErrInvalidRequest))
	}

	id, err := e.sessions.ResolveOrCreate(ctx, userID, sessionID)
	if err != nil {
		return e.failed(ctx, start, sessionID, fmt.Errorf("resolve session: %w", err))
	}
	ctx = log.WithTurn(ctx, userID, id)

	turn, err := e.sessions.Begin(ctx, userID, id)
	if err != nil {
		return e.failed(ctx, start, id, fmt.Errorf("load context: %w", err))
	}
	defer turn.Release()

	messages := append(turn.Messages(), core.Message{Role: core.RoleUser, Content: message})

	completion, err := e.complete(ctx, messages)
	if err != nil {
		return e.failed(ctx, start, id, err)
	}

	messages = append(messages, core.Message{Role: core.RoleAssistant, Content: completion.Content})
	elapsed := e.now().Sub(start).Milliseconds()

	tokens := completion.TokensUsed
	if tokens == 0 && e.tokens != nil {
		tokens = e.tokens.CountTokens(completion.Content)
	}

	ts := e.now()
	records := []core.ConversationRecord{
		{UserID: userID, SessionID: id, MessageType: core.RoleUser, Content: message, Timestamp: ts},
		{UserID: userID, SessionID: id, MessageType: core.RoleAssistant, Content: completion.Content, TokensUsed: tokens, ProcessingTimeMs: elapsed, Timestamp: ts},
	}

	committed, err := turn.Commit(ctx, messages, records)
	if err != nil {
		return e.failed(ctx, start, id, fmt.Errorf("commit turn: %w", err))
	}

	log.FromCtx(ctx).Info().
		Int("context_len", len(committed)).
		Int("tokens", tokens).
		Int64("elapsed_ms", elapsed).
		Msg("turn committed")

	return core.ConversationResult{
		Response:         completion.Content,
		SessionID:        id,
		Success:          true,
		ProcessingTimeMs: elapsed,
		TokensUsed:       tokens,
	}
}

// complete makes exactly one backend attempt under the model timeout.
func (e *Engine) complete(ctx context.Context, messages []core.Message) (core.Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()

	out, err := e.backend.Complete(callCtx, core.CompletionRequest{
		Messages:    messages,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return core.Completion{}, fmt.Errorf("model call: %w", err)
	}
	return out, nil
}

func (e *Engine) failed(ctx context.Context, start time.Time, sessionID string, err error) core.ConversationResult {
	kind := core.KindOf(err)
	elapsed := e.now().Sub(start).Milliseconds()

	log.FromCtx(ctx).Error().
		Err(err).
		Str("kind", string(kind)).
		Int64("elapsed_ms", elapsed).
		Msg("turn failed")

	return core.ConversationResult{
		Response:         core.GenericFailureMessage,
		SessionID:        sessionID,
		ProcessingTimeMs: elapsed,
		Error:            err.Error(),
		Kind:             kind,
	}
}

// Clear retires sessionID (the active session when empty). When that was the
// active session a fresh seeded one replaces it. Returns the active session id.
func (e *Engine) Clear(ctx context.Context, userID int64, sessionID string) (string, error) {
	return e.sessions.Rotate(ctx, userID, sessionID)
}

func (e *Engine) ActiveSession(ctx context.Context, userID int64) (string, error) {
	return e.sessions.ActiveSession(ctx, userID)
}

func (e *Engine) ReapExpired(ctx context.Context, timeout time.Duration) (int, error) {
	return e.sessions.ReapExpired(ctx, timeout)
}

func (e *Engine) Stats(ctx context.Context, userID int64) (core.UserStats, error) {
	stats, err := e.audit.UserStats(ctx, userID)
	if err != nil {
		return core.UserStats{}, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return stats, nil
}

// GlobalStats counts users active in the last seven days.
func (e *Engine) GlobalStats(ctx context.Context) (core.GlobalStats, error) {
	stats, err := e.audit.GlobalStats(ctx, e.now().Add(-activeUsersWindow))
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return stats, nil
}

// History returns the audit records of one session in insertion order.
func (e *Engine) History(ctx context.Context, sessionID string) ([]core.ConversationRecord, error) {
	records, err := e.audit.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return records, nil
}

// UserHistory returns up to limit of the user's most recent audit records.
func (e *Engine) UserHistory(ctx context.Context, userID int64, limit int) ([]core.ConversationRecord, error) {
	records, err := e.audit.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return records, nil
}
