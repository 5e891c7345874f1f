package core

import (
	"context"
	"time"
)

// ContextStore is the durable side of session context.
type ContextStore interface {
	LoadContext(ctx context.Context, userID int64, sessionID string) ([]Message, error)
	SaveContext(ctx context.Context, userID int64, sessionID string, messages []Message) error
}

type SessionRepository interface {
	ContextStore
	CreateSession(ctx context.Context, userID int64, sessionID string, seed []Message) error
	ActiveSession(ctx context.Context, userID int64) (string, error)
	Deactivate(ctx context.Context, userID int64, sessionID string) (bool, error)
	DeactivateIdle(ctx context.Context, cutoff time.Time) ([]string, error)
	// SaveTurn stores the context and appends the audit records atomically.
	SaveTurn(ctx context.Context, userID int64, sessionID string, messages []Message, records []ConversationRecord) error
}

type ConversationRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]ConversationRecord, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]ConversationRecord, error)
	UserStats(ctx context.Context, userID int64) (UserStats, error)
	GlobalStats(ctx context.Context, since time.Time) (GlobalStats, error)
}

type UserRepository interface {
	UpsertUser(ctx context.Context, profile UserProfile) error
	GetUser(ctx context.Context, telegramUserID int64) (UserProfile, error)
}
