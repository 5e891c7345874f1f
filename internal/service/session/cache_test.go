package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContext = []core.Message{
	{Role: core.RoleSystem, Content: "seed"},
	{Role: core.RoleUser, Content: "hello"},
	{Role: core.RoleAssistant, Content: "hi"},
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cache := NewCache(store)

	require.NoError(t, cache.Put(ctx, 42, "s1", testContext))

	hit, ok, err := cache.Get(ctx, 42, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cache.Evict(ctx, "s1"))
	_, ok, err = cache.Get(ctx, 42, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	durable, err := store.LoadContext(ctx, 42, "s1")
	require.NoError(t, err)
	assert.Equal(t, durable, hit)
	assert.Equal(t, testContext, hit)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newMemStore())
	require.NoError(t, cache.Put(ctx, 42, "s1", testContext))

	got, _, _ := cache.Get(ctx, 42, "s1")
	got[1].Content = "mutated"

	again, _, _ := cache.Get(ctx, 42, "s1")
	assert.Equal(t, "hello", again[1].Content)
}

func TestCache_OwnerMismatchIsMiss(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newMemStore())
	require.NoError(t, cache.Put(ctx, 42, "s1", testContext))

	_, ok, err := cache.Get(ctx, 7, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_PutFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cache := NewCache(store)
	require.NoError(t, cache.Put(ctx, 42, "s1", testContext[:1]))

	store.saveErr = errors.New("disk full")
	err := cache.Put(ctx, 42, "s1", testContext)
	require.Error(t, err)

	got, ok, _ := cache.Get(ctx, 42, "s1")
	require.True(t, ok)
	assert.Equal(t, testContext[:1], got)
}

func TestCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache(newMemStore(), WithTTL(time.Minute), WithCacheClock(func() time.Time { return now }))

	require.NoError(t, cache.Put(ctx, 42, "s1", testContext))
	_, ok, _ := cache.Get(ctx, 42, "s1")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = cache.Get(ctx, 42, "s1")
	assert.False(t, ok)

	assert.Equal(t, 1, cache.Sweep())
	assert.Zero(t, cache.Len())
}

func TestCache_NewerSessionInvalidatesOlder(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newMemStore())

	require.NoError(t, cache.Put(ctx, 42, "s1", testContext))
	require.NoError(t, cache.Put(ctx, 7, "other", testContext))
	require.NoError(t, cache.Put(ctx, 42, "s2", testContext))

	_, ok, _ := cache.Get(ctx, 42, "s1")
	assert.False(t, ok)

	_, ok, _ = cache.Get(ctx, 42, "s2")
	assert.True(t, ok)

	_, ok, _ = cache.Get(ctx, 7, "other")
	assert.True(t, ok, "other users keep their entries")
}

func TestCache_LeaseIsExclusive(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newMemStore())

	lease, err := cache.Acquire(ctx, "s1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = cache.Acquire(waitCtx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// other sessions are not blocked
	other, err := cache.Acquire(ctx, "s2")
	require.NoError(t, err)
	other.Release()

	acquired := make(chan struct{})
	go func() {
		l, err := cache.Acquire(ctx, "s1")
		if err == nil {
			l.Release()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lease acquired while the first is held")
	case <-time.After(20 * time.Millisecond):
	}

	lease.Release()
	lease.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lease never acquired")
	}
	assert.Zero(t, cache.Len())
}

func TestTruncate(t *testing.T) {
	build := func(n int) []core.Message {
		msgs := []core.Message{{Role: core.RoleSystem, Content: "seed"}}
		for i := 1; i < n; i++ {
			role := core.RoleUser
			if i%2 == 0 {
				role = core.RoleAssistant
			}
			msgs = append(msgs, core.Message{Role: role, Content: string(rune('a' + i%26))})
		}
		return msgs
	}

	tests := []struct {
		name    string
		size    int
		limit   int
		wantLen int
	}{
		{name: "under_cap", size: 5, limit: 20, wantLen: 5},
		{name: "at_cap", size: 20, limit: 20, wantLen: 20},
		{name: "one_over_cap", size: 21, limit: 20, wantLen: 20},
		{name: "far_over_cap", size: 61, limit: 20, wantLen: 20},
		{name: "tiny_cap", size: 7, limit: 2, wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := build(tt.size)
			got := Truncate(in, tt.limit)

			require.Len(t, got, tt.wantLen)
			assert.Equal(t, core.RoleSystem, got[0].Role)
			assert.Equal(t, in[len(in)-1], got[len(got)-1])
			assert.Equal(t, in[len(in)-(tt.wantLen-1):], got[1:])
		})
	}

	t.Run("drops_first_user_message", func(t *testing.T) {
		in := build(21)
		got := Truncate(in, 20)
		assert.Equal(t, in[0], got[0])
		assert.Equal(t, in[2], got[1])
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Truncate(nil, 20))
	})
}
