package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestLimiter_NPlusOneYieldsOneRejection(t *testing.T) {
	c := newClock()
	l := NewLimiter(10, time.Minute, WithClock(c.Now))

	rejected := 0
	for i := 0; i < 11; i++ {
		if !l.Admit(42) {
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)
	assert.Zero(t, l.Remaining(42))
	assert.Equal(t, 10, l.Remaining(7), "identities are independent")
}

func TestLimiter_SlidingWindow(t *testing.T) {
	c := newClock()
	l := NewLimiter(2, time.Minute, WithClock(c.Now))

	require.True(t, l.Admit(1))
	c.Advance(30 * time.Second)
	require.True(t, l.Admit(1))
	require.False(t, l.Admit(1))

	// first hit leaves the window, second is still inside
	c.Advance(31 * time.Second)
	assert.True(t, l.Admit(1))
	assert.False(t, l.Admit(1))
}

func TestLimiter_RejectionRecordsNothing(t *testing.T) {
	c := newClock()
	l := NewLimiter(1, time.Minute, WithClock(c.Now))

	require.True(t, l.Admit(1))
	for i := 0; i < 5; i++ {
		c.Advance(10 * time.Second)
		require.False(t, l.Admit(1))
	}

	// only the first hit counts, so the window frees up one minute after it
	c.Advance(11 * time.Second)
	assert.True(t, l.Admit(1))
}

func TestLimiter_ConcurrentSameIdentity(t *testing.T) {
	l := NewLimiter(10, time.Minute)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(42) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
}

func TestLimiter_Sweep(t *testing.T) {
	c := newClock()
	l := NewLimiter(3, time.Minute, WithClock(c.Now))

	l.Admit(1)
	c.Advance(45 * time.Second)
	l.Admit(2)
	c.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 3, l.Remaining(1))
	assert.Equal(t, 2, l.Remaining(2))
	assert.True(t, l.Admit(1))
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	access := config.AccessConfig{WhitelistedUsers: []int64{1}, AdminUserIDs: []int64{9}}

	tests := []struct {
		name     string
		userID   int64
		calls    int
		wantKind core.ErrorKind
		wantErr  error
	}{
		{name: "allowed_user", userID: 1, calls: 1},
		{name: "admin_not_whitelisted", userID: 9, calls: 1},
		{name: "unknown_user_denied", userID: 5, calls: 1, wantKind: core.KindAccessDenied, wantErr: core.ErrAccessDenied},
		{name: "rate_limited_after_budget", userID: 1, calls: 3, wantKind: core.KindRateLimited, wantErr: core.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewLimiter(2, time.Minute)
			p := New(AccessList(access), RateLimit(limiter))

			var d Decision
			for i := 0; i < tt.calls; i++ {
				d = p.Admit(ctx, tt.userID)
			}

			assert.Equal(t, tt.wantKind == core.KindNone, d.Allowed)
			assert.Equal(t, tt.wantKind, d.Kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, d.Err(), tt.wantErr)
				assert.NotEmpty(t, d.Message)
			} else {
				assert.NoError(t, d.Err())
			}
		})
	}
}

func TestPipeline_DeniedUserKeepsRateBudget(t *testing.T) {
	ctx := context.Background()
	limiter := NewLimiter(1, time.Minute)
	p := New(AccessList(config.AccessConfig{WhitelistedUsers: []int64{1}}), RateLimit(limiter))

	for i := 0; i < 5; i++ {
		assert.False(t, p.Admit(ctx, 5).Allowed)
	}
	assert.Equal(t, 1, limiter.Remaining(5))
}

func TestAdminOnly(t *testing.T) {
	check := AdminOnly(config.AccessConfig{AdminUserIDs: []int64{9}})
	assert.True(t, check(context.Background(), 9).Allowed)

	d := check(context.Background(), 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, AdminOnlyMessage, d.Message)
}
