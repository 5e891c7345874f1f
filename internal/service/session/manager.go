package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

// Manager owns every session lifecycle transition.
type Manager struct {
	repo   core.SessionRepository
	cache  *Cache
	users  *keyedLocker[int64]
	prompt string
	limit  int
	newID  func() string
	now    func() time.Time
}

type Option func(*Manager)

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(repo core.SessionRepository, cache *Cache, systemPrompt string, maxMessages int, opts ...Option) *Manager {
	m := &Manager{
		repo:   repo,
		cache:  cache,
		users:  newKeyedLocker[int64](),
		prompt: systemPrompt,
		limit:  maxMessages,
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Seed() []core.Message {
	return []core.Message{{Role: core.RoleSystem, Content: m.prompt}}
}

func (m *Manager) MaxMessages() int {
	return m.limit
}

// ResolveOrCreate returns sessionID unchanged when given, otherwise the user's
// active session, creating one when there is none.
func (m *Manager) ResolveOrCreate(ctx context.Context, userID int64, sessionID string) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}

	unlock, err := m.users.Lock(ctx, userID)
	if err != nil {
		return "", err
	}
	defer unlock()

	id, err := m.repo.ActiveSession(ctx, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, core.ErrSessionNotFound) {
		return "", fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}

	return m.create(ctx, userID)
}

// Rotate clears sessionID, or the active session when sessionID is empty, and
// starts a fresh seeded session when the cleared one was active. It returns
// the user's active session id afterwards.
func (m *Manager) Rotate(ctx context.Context, userID int64, sessionID string) (string, error) {
	unlock, err := m.users.Lock(ctx, userID)
	if err != nil {
		return "", err
	}
	defer unlock()

	active, err := m.ActiveSession(ctx, userID)
	if err != nil {
		return "", err
	}
	if sessionID == "" {
		sessionID = active
	}
	if sessionID != "" {
		if err := m.Clear(ctx, userID, sessionID); err != nil {
			return "", err
		}
	}

	// an inactive session was cleared, the active one stays
	if active != "" && sessionID != active {
		return active, nil
	}
	return m.create(ctx, userID)
}

func (m *Manager) create(ctx context.Context, userID int64) (string, error) {
	id := m.newID()

	lease, err := m.cache.Acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	seed := m.Seed()
	if err := m.repo.CreateSession(ctx, userID, id, seed); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	lease.Fill(userID, seed)

	log.FromCtx(ctx).Info().Int64("user_id", userID).Str("session_id", id).Msg("session created")
	return id, nil
}

// Begin takes the session lock and loads its context, falling back to the
// store and then to a fresh seeded context. The returned Turn holds the lock until Release.
func (m *Manager) Begin(ctx context.Context, userID int64, sessionID string) (*Turn, error) {
	lease, err := m.cache.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages, ok := lease.Get(userID)
	if !ok {
		messages, err = m.load(ctx, lease, userID)
		if err != nil {
			lease.Release()
			return nil, err
		}
	}

	return &Turn{
		m:        m,
		lease:    lease,
		userID:   userID,
		messages: messages,
	}, nil
}

func (m *Manager) load(ctx context.Context, lease *Lease, userID int64) ([]core.Message, error) {
	logger := log.FromCtx(ctx)

	messages, err := m.repo.LoadContext(ctx, userID, lease.SessionID())
	switch {
	case err == nil:
		lease.Fill(userID, messages)
		logger.Debug().Int("count", len(messages)).Msg("context loaded from store")
		return messages, nil
	case errors.Is(err, core.ErrSessionNotFound):
		seed := m.Seed()
		if err := lease.Put(ctx, userID, seed); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
		}
		logger.Debug().Msg("session not found, started fresh context")
		return seed, nil
	default:
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
}

// Clear deactivates the session and drops it from the cache. Clearing an
// inactive or unknown session is a no-op.
func (m *Manager) Clear(ctx context.Context, userID int64, sessionID string) error {
	lease, err := m.cache.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer lease.Release()

	changed, err := m.repo.Deactivate(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	lease.Invalidate()

	log.FromCtx(ctx).Info().
		Int64("user_id", userID).
		Str("session_id", sessionID).
		Bool("changed", changed).
		Msg("session cleared")
	return nil
}

// ActiveSession returns "" when the user has no active session.
func (m *Manager) ActiveSession(ctx context.Context, userID int64) (string, error) {
	id, err := m.repo.ActiveSession(ctx, userID)
	if errors.Is(err, core.ErrSessionNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return id, nil
}

// ReapExpired deactivates sessions idle longer than timeout and evicts them from the cache.
func (m *Manager) ReapExpired(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := m.now().Add(-timeout)
	ids, err := m.repo.DeactivateIdle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}

	for _, id := range ids {
		if err := m.cache.Evict(ctx, id); err != nil {
			return len(ids), err
		}
	}
	swept := m.cache.Sweep()

	log.FromCtx(ctx).Info().
		Int("reaped", len(ids)).
		Int("swept", swept).
		Time("cutoff", cutoff).
		Msg("expired sessions reaped")
	return len(ids), nil
}

// Turn is one locked read, mutate, write cycle on a session.
type Turn struct {
	m        *Manager
	lease    *Lease
	userID   int64
	messages []core.Message
}

func (t *Turn) SessionID() string {
	return t.lease.SessionID()
}

// Messages returns a copy of the context as loaded.
func (t *Turn) Messages() []core.Message {
	return cloneMessages(t.messages)
}

// Commit truncates messages to the cap, stores them together with the audit
// records and refreshes the cache. On error nothing is visible.
func (t *Turn) Commit(ctx context.Context, messages []core.Message, records []core.ConversationRecord) ([]core.Message, error) {
	truncated := Truncate(messages, t.m.limit)
	if err := t.m.repo.SaveTurn(ctx, t.userID, t.SessionID(), truncated, records); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}

	t.lease.Fill(t.userID, truncated)
	t.messages = truncated
	return cloneMessages(truncated), nil
}

func (t *Turn) Release() {
	t.lease.Release()
}
