package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

// Cache is the in-memory mirror of hot session contexts.
// Every entry carries its own lock; a Lease holds that lock for a whole load, mutate, persist sequence.
type Cache struct {
	store core.ContextStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	lock chan struct{}

	// guarded by Cache.mu
	refs     int
	owner    int64
	messages []core.Message
	valid    bool
	expires  time.Time
}

type CacheOption func(*Cache)

// WithTTL bounds how long a cached context is trusted. Zero disables expiry.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(store core.ContextStore, opts ...CacheOption) *Cache {
	c := &Cache{
		store:   store,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire blocks until the caller owns sessionID's entry or ctx is done.
func (c *Cache) Acquire(ctx context.Context, sessionID string) (*Lease, error) {
	c.mu.Lock()
	e, ok := c.entries[sessionID]
	if !ok {
		e = &entry{lock: make(chan struct{}, 1)}
		c.entries[sessionID] = e
	}
	e.refs++
	c.mu.Unlock()

	select {
	case e.lock <- struct{}{}:
		return &Lease{cache: c, id: sessionID, e: e}, nil
	case <-ctx.Done():
		c.unref(sessionID, e)
		return nil, ctx.Err()
	}
}

func (c *Cache) unref(sessionID string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if e.refs == 0 && !e.valid && c.entries[sessionID] == e {
		delete(c.entries, sessionID)
	}
}

// Get is a single-shot read under the session lock.
func (c *Cache) Get(ctx context.Context, userID int64, sessionID string) ([]core.Message, bool, error) {
	l, err := c.Acquire(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer l.Release()

	msgs, ok := l.Get(userID)
	return msgs, ok, nil
}

// Put is a single-shot write-through under the session lock.
func (c *Cache) Put(ctx context.Context, userID int64, sessionID string, messages []core.Message) error {
	l, err := c.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer l.Release()

	return l.Put(ctx, userID, messages)
}

// Evict drops the cached copy of sessionID. The durable copy is untouched.
func (c *Cache) Evict(ctx context.Context, sessionID string) error {
	l, err := c.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer l.Release()

	l.Invalidate()
	return nil
}

// Sweep removes expired entries nobody holds and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for id, e := range c.entries {
		if e.refs > 0 {
			continue
		}
		if !e.valid || c.expired(e, now) {
			delete(c.entries, id)
			dropped++
		}
	}
	return dropped
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return c.ttl > 0 && now.After(e.expires)
}

// invalidateOthers drops the user's other cached sessions after the store
// switched them inactive. It touches data only, never entry locks.
func (c *Cache) invalidateOthers(userID int64, keep string) {
	for id, e := range c.entries {
		if id == keep || !e.valid || e.owner != userID {
			continue
		}
		e.valid = false
		e.messages = nil
		if e.refs == 0 {
			delete(c.entries, id)
		}
	}
}

// Lease is exclusive access to one session entry. Release must be called exactly once.
type Lease struct {
	cache    *Cache
	id       string
	e        *entry
	released bool
}

func (l *Lease) SessionID() string {
	return l.id
}

// Get returns a copy of the cached context when it is present, fresh and owned by userID.
func (l *Lease) Get(userID int64) ([]core.Message, bool) {
	c := l.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	e := l.e
	if !e.valid || e.owner != userID || c.expired(e, c.now()) {
		return nil, false
	}
	return cloneMessages(e.messages), true
}

// Put writes through to the store and then caches the context.
func (l *Lease) Put(ctx context.Context, userID int64, messages []core.Message) error {
	if err := l.cache.store.SaveContext(ctx, userID, l.id, messages); err != nil {
		return fmt.Errorf("write through: %w", err)
	}
	l.Fill(userID, messages)
	return nil
}

// Fill caches a context that is already durable.
func (l *Lease) Fill(userID int64, messages []core.Message) {
	c := l.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	l.e.owner = userID
	l.e.messages = cloneMessages(messages)
	l.e.valid = true
	l.e.expires = c.now().Add(c.ttl)

	c.invalidateOthers(userID, l.id)
}

func (l *Lease) Invalidate() {
	c := l.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	l.e.valid = false
	l.e.messages = nil
}

func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	<-l.e.lock
	l.cache.unref(l.id, l.e)
}

func cloneMessages(in []core.Message) []core.Message {
	if in == nil {
		return nil
	}
	out := make([]core.Message, len(in))
	copy(out, in)
	return out
}
