package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationsRepo_Stats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	sessions := NewSessionsRepo(db)
	conversations := NewConversationsRepo(db)
	users := NewUsersRepo(db)

	now := time.Now()
	require.NoError(t, users.UpsertUser(ctx, core.UserProfile{TelegramUserID: 42, Username: "alice", LastSeen: now}))
	require.NoError(t, users.UpsertUser(ctx, core.UserProfile{TelegramUserID: 7, Username: "bob", LastSeen: now.Add(-30 * 24 * time.Hour)}))

	require.NoError(t, sessions.CreateSession(ctx, 42, "s1", seed))
	records := []core.ConversationRecord{
		{MessageType: core.RoleUser, Content: "hello"},
		{MessageType: core.RoleAssistant, Content: "hi", TokensUsed: 20, ProcessingTimeMs: 100},
	}
	require.NoError(t, sessions.SaveTurn(ctx, 42, "s1", seed, records))
	require.NoError(t, sessions.SaveTurn(ctx, 42, "s1", seed, records))

	stats, err := conversations.UserStats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, core.UserStats{
		UserID:             42,
		TotalMessages:      4,
		TotalTokens:        40,
		TotalProcessingMs:  200,
		ActiveSessionCount: 1,
	}, stats)

	empty, err := conversations.UserStats(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, core.UserStats{UserID: 999}, empty)

	global, err := conversations.GlobalStats(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), global.TotalUsers)
	assert.Equal(t, int64(1), global.ActiveUsers7d)
	assert.Equal(t, int64(4), global.TotalConversations)
	assert.Equal(t, int64(40), global.TotalTokens)
	assert.InDelta(t, 10.0, global.AvgTokensPerMessage, 1e-9)
	assert.Equal(t, int64(1), global.ActiveSessions)

	recent, err := conversations.ListByUser(ctx, 42, 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
	assert.Greater(t, recent[0].ID, recent[1].ID)
}

func TestUsersRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	users := NewUsersRepo(newTestDB(t))

	require.NoError(t, users.UpsertUser(ctx, core.UserProfile{TelegramUserID: 42, Username: "alice"}))
	require.NoError(t, users.UpsertUser(ctx, core.UserProfile{TelegramUserID: 42, Username: "alice2", FirstName: "Alice"}))

	got, err := users.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, "Alice", got.FirstName)
	assert.False(t, got.LastSeen.IsZero())

	_, err = users.GetUser(ctx, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
