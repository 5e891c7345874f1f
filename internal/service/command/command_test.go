package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversations struct {
	stats      core.UserStats
	global     core.GlobalStats
	active     string
	cleared    []int64
	fresh      string
	reapedWith time.Duration
	err        error
}

func (f *fakeConversations) Stats(ctx context.Context, userID int64) (core.UserStats, error) {
	return f.stats, f.err
}

func (f *fakeConversations) GlobalStats(ctx context.Context) (core.GlobalStats, error) {
	return f.global, f.err
}

func (f *fakeConversations) ActiveSession(ctx context.Context, userID int64) (string, error) {
	return f.active, f.err
}

func (f *fakeConversations) Clear(ctx context.Context, userID int64, sessionID string) (string, error) {
	f.cleared = append(f.cleared, userID)
	return f.fresh, f.err
}

func (f *fakeConversations) ReapExpired(ctx context.Context, timeout time.Duration) (int, error) {
	f.reapedWith = timeout
	return 3, f.err
}

func newTestRouter(conv *fakeConversations) *Router {
	return NewRouter(conv, config.AccessConfig{AdminUserIDs: []int64{9}}, time.Hour)
}

func TestRouter_Execute(t *testing.T) {
	ctx := context.Background()
	conv := &fakeConversations{
		stats:  core.UserStats{TotalMessages: 4, TotalTokens: 12345, ActiveSessionCount: 1},
		global: core.GlobalStats{TotalUsers: 2, TotalConversations: 10, ActiveSessions: 1, TotalTokens: 50, AvgTokensPerMessage: 5},
		active: "sess-1",
	}
	router := newTestRouter(conv)

	tests := []struct {
		name        string
		userID      int64
		input       string
		wantHandled bool
		contains    []string
	}{
		{name: "plain_text", userID: 1, input: "hello", wantHandled: false},
		{name: "unknown", userID: 1, input: "/nope", wantHandled: true, contains: []string{"Unknown command: /nope"}},
		{name: "start", userID: 1, input: "/start", wantHandled: true, contains: []string{"Welcome"}},
		{name: "help_lists_commands", userID: 1, input: "/help", wantHandled: true, contains: []string{"/admin", "/clear", "/stats"}},
		{name: "stats", userID: 1, input: "/stats", wantHandled: true, contains: []string{"12,345", "Total Messages"}},
		{name: "stats_with_bot_suffix", userID: 1, input: "/stats@relay_bot", wantHandled: true, contains: []string{"Total Messages"}},
		{name: "session", userID: 1, input: "/session", wantHandled: true, contains: []string{"sess-1"}},
		{name: "admin_denied", userID: 1, input: "/admin", wantHandled: true, contains: []string{"Admin access required"}},
		{name: "admin_panel", userID: 9, input: "/admin", wantHandled: true, contains: []string{"Admin Panel", "Total Users:** 2"}},
		{name: "admin_stats", userID: 9, input: "/admin stats", wantHandled: true, contains: []string{"Detailed System Statistics", "5.0"}},
		{name: "admin_cleanup", userID: 9, input: "/admin cleanup", wantHandled: true, contains: []string{"Cleanup Complete", "3"}},
		{name: "admin_usage", userID: 9, input: "/admin nope", wantHandled: true, contains: []string{"/admin [stats|cleanup]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, handled := router.Execute(ctx, tt.userID, tt.input)
			assert.Equal(t, tt.wantHandled, handled)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}

	assert.Equal(t, time.Hour, conv.reapedWith)
}

func TestRouter_Clear(t *testing.T) {
	conv := &fakeConversations{fresh: "sess-2"}
	out, handled := newTestRouter(conv).Execute(context.Background(), 5, "/clear")

	require.True(t, handled)
	assert.Contains(t, out, "History Cleared")
	assert.Contains(t, out, "sess-2")
	assert.Equal(t, []int64{5}, conv.cleared)
}

func TestRouter_CommandError(t *testing.T) {
	conv := &fakeConversations{err: errors.New("db down")}
	out, handled := newTestRouter(conv).Execute(context.Background(), 1, "/stats")

	require.True(t, handled)
	assert.Contains(t, out, "Command Error")
	assert.Contains(t, out, "db down")
}

func TestRouter_ListCommandsSorted(t *testing.T) {
	var names []string
	for _, cmd := range newTestRouter(&fakeConversations{}).ListCommands() {
		names = append(names, cmd.Name())
	}
	assert.Equal(t, []string{"admin", "clear", "help", "session", "start", "stats"}, names)
}

func TestThousands(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		12345:    "12,345",
		-1234567: "-1,234,567",
	}
	for in, want := range tests {
		assert.Equal(t, want, Thousands(in))
	}
}
