package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/session"
	"github.com/sandevgo/tuskrelay/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFunc func(ctx context.Context, req core.CompletionRequest) (core.Completion, error)

func (f backendFunc) Complete(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
	return f(ctx, req)
}

type charCounter struct{}

func (charCounter) CountTokens(text string) int { return len(text) }

// echo answers the last message.
func echo() backendFunc {
	return func(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
		last := req.Messages[len(req.Messages)-1]
		return core.Completion{Content: fmt.Sprintf("reply to %s", last.Content), TokensUsed: 7}, nil
	}
}

// failingStore refuses SaveTurn while fail is set.
type failingStore struct {
	*sqlite.SessionsRepo
	fail atomic.Bool
}

func (s *failingStore) SaveTurn(ctx context.Context, userID int64, sessionID string, messages []core.Message, records []core.ConversationRecord) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.SessionsRepo.SaveTurn(ctx, userID, sessionID, messages, records)
}

type fixture struct {
	engine   *Engine
	sessions *sqlite.SessionsRepo
	store    *failingStore
	audit    *sqlite.ConversationsRepo
	backend  backendFunc
	mu       sync.Mutex
}

func (f *fixture) setBackend(b backendFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backend = b
}

func (f *fixture) Complete(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
	f.mu.Lock()
	b := f.backend
	f.mu.Unlock()
	return b(ctx, req)
}

func newFixture(t *testing.T, limit int, timeout time.Duration) *fixture {
	t.Helper()
	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		sessions: sqlite.NewSessionsRepo(db),
		audit:    sqlite.NewConversationsRepo(db),
		backend:  echo(),
	}
	f.store = &failingStore{SessionsRepo: f.sessions}
	cache := session.NewCache(f.store)
	manager := session.NewManager(f.store, cache, "be helpful", limit)
	f.engine = NewEngine(manager, f, charCounter{}, f.audit, Config{ModelTimeout: timeout, MaxTokens: 100})
	return f
}

func (f *fixture) context(t *testing.T, userID int64, sessionID string) []core.Message {
	t.Helper()
	msgs, err := f.sessions.LoadContext(context.Background(), userID, sessionID)
	require.NoError(t, err)
	return msgs
}

func TestEngine_FirstAndSecondTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20, time.Second)

	res := f.engine.Process(ctx, 42, "hello", "")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "reply to hello", res.Response)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, core.KindNone, res.Kind)

	msgs := f.context(t, 42, res.SessionID)
	assert.Equal(t, []core.Message{
		{Role: core.RoleSystem, Content: "be helpful"},
		{Role: core.RoleUser, Content: "hello"},
		{Role: core.RoleAssistant, Content: "reply to hello"},
	}, msgs)

	records, err := f.audit.ListBySession(ctx, res.SessionID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, core.RoleUser, records[0].MessageType)
	assert.Equal(t, core.RoleAssistant, records[1].MessageType)
	assert.Equal(t, 7, records[1].TokensUsed)

	second := f.engine.Process(ctx, 42, "again", res.SessionID)
	require.True(t, second.Success, second.Error)
	assert.Equal(t, res.SessionID, second.SessionID)
	assert.Len(t, f.context(t, 42, res.SessionID), 5)
}

func TestEngine_ReusesActiveSessionWithoutID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20, time.Second)

	first := f.engine.Process(ctx, 42, "one", "")
	second := f.engine.Process(ctx, 42, "two", "")
	require.True(t, second.Success)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestEngine_TruncatesAfterTenTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20, time.Second)

	var id string
	for i := 1; i <= 10; i++ {
		res := f.engine.Process(ctx, 42, fmt.Sprintf("msg %d", i), id)
		require.True(t, res.Success, res.Error)
		id = res.SessionID
	}

	msgs := f.context(t, 42, id)
	require.Len(t, msgs, 20)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, "reply to msg 1", msgs[1].Content, "first user message is the one dropped")
	assert.Equal(t, "reply to msg 10", msgs[19].Content)

	records, err := f.audit.ListBySession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, records, 20, "audit log is never truncated")
}

func TestEngine_BackendFailureLeavesContextUntouched(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		backend   backendFunc
		failStore bool
		wantKind  core.ErrorKind
	}{
		{
			name: "backend_error",
			backend: func(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
				return core.Completion{}, &core.BackendError{Provider: "fake", StatusCode: 500, Err: errors.New("boom")}
			},
			wantKind: core.KindBackendError,
		},
		{
			name: "timeout",
			backend: func(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
				<-ctx.Done()
				return core.Completion{}, ctx.Err()
			},
			wantKind: core.KindBackendTimeout,
		},
		{
			name:      "persistence_error_after_reply",
			backend:   echo(),
			failStore: true,
			wantKind:  core.KindPersistenceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 20, 50*time.Millisecond)

			first := f.engine.Process(ctx, 42, "hello", "")
			require.True(t, first.Success)
			before := f.context(t, 42, first.SessionID)

			var calls int
			f.setBackend(func(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
				calls++
				return tt.backend(ctx, req)
			})
			f.store.fail.Store(tt.failStore)

			res := f.engine.Process(ctx, 42, "again", first.SessionID)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, core.GenericFailureMessage, res.Response)
			assert.Equal(t, first.SessionID, res.SessionID)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, 1, calls, "no retry")

			assert.Equal(t, before, f.context(t, 42, first.SessionID))
			records, err := f.audit.ListBySession(ctx, first.SessionID)
			require.NoError(t, err)
			assert.Len(t, records, 2)

			// the cached copy must not carry the failed user message either
			f.store.fail.Store(false)
			f.setBackend(echo())
			next := f.engine.Process(ctx, 42, "third", first.SessionID)
			require.True(t, next.Success)
			assert.Len(t, f.context(t, 42, first.SessionID), 5)
		})
	}
}

func TestEngine_EmptyMessage(t *testing.T) {
	f := newFixture(t, 20, time.Second)

	res := f.engine.Process(context.Background(), 42, "   ", "")
	assert.False(t, res.Success)
	assert.Equal(t, core.KindInvalidRequest, res.Kind)

	id, err := f.engine.ActiveSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, id, "no session is created for a rejected message")
}

func TestEngine_ForeignSessionDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20, time.Second)

	owner := f.engine.Process(ctx, 1, "mine", "")
	require.True(t, owner.Success)

	res := f.engine.Process(ctx, 2, "steal", owner.SessionID)
	assert.False(t, res.Success)
	assert.Equal(t, core.KindAccessDenied, res.Kind)
	assert.Len(t, f.context(t, 1, owner.SessionID), 3)
}

func TestEngine_EstimatesTokensWhenBackendOmitsUsage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20, time.Second)
	f.setBackend(func(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
		return core.Completion{Content: "abcd"}, nil
	})

	res := f.engine.Process(ctx, 42, "hi", "")
	require.True(t, res.Success)
	assert.Equal(t, 4, res.TokensUsed)
}

func TestEngine_ClearAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20, time.Second)

	res := f.engine.Process(ctx, 42, "hello", "")
	require.True(t, res.Success)

	stats, err := f.engine.Stats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMessages)
	assert.Equal(t, int64(7), stats.TotalTokens)
	assert.Equal(t, int64(1), stats.ActiveSessionCount)

	fresh, err := f.engine.Clear(ctx, 42, res.SessionID)
	require.NoError(t, err)
	assert.NotEqual(t, res.SessionID, fresh)

	// clearing the retired session again leaves the fresh one in place
	again, err := f.engine.Clear(ctx, 42, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, fresh, again)

	active, err := f.engine.ActiveSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, fresh, active)
	assert.Len(t, f.context(t, 42, fresh), 1, "fresh session holds only the seed")

	stats, err = f.engine.Stats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMessages, "audit survives clear")
	assert.Equal(t, int64(1), stats.ActiveSessionCount)

	next := f.engine.Process(ctx, 42, "fresh", "")
	require.True(t, next.Success)
	assert.Equal(t, fresh, next.SessionID)
	assert.Len(t, f.context(t, 42, next.SessionID), 3)

	global, err := f.engine.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), global.TotalConversations)
	assert.Equal(t, int64(1), global.ActiveSessions)
	history, err := f.engine.History(ctx, res.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2, "retired session keeps its audit trail")
	assert.Equal(t, "user", history[0].MessageType)
	assert.Equal(t, "hello", history[0].Content)

	recent, err := f.engine.UserHistory(ctx, 42, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "reply to fresh", recent[0].Content, "newest first")
}

func TestEngine_ConcurrentTurnsOnOneSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100, time.Second)

	first := f.engine.Process(ctx, 42, "start", "")
	require.True(t, first.Success)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := f.engine.Process(ctx, 42, fmt.Sprintf("m%d", i), first.SessionID)
			assert.True(t, res.Success, res.Error)
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.context(t, 42, first.SessionID), 3+2*10, "no lost updates")
}
