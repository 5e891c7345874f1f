package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

type memSession struct {
	userID   int64
	messages []core.Message
	active   bool
	updated  time.Time
}

// memStore is an in-memory core.SessionRepository with call counters and failure injection.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	records  []core.ConversationRecord
	now      func() time.Time

	loads     int
	saveErr   error
	deactErr  error
	saveCalls int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*memSession), now: time.Now}
}

func (s *memStore) LoadContext(ctx context.Context, userID int64, sessionID string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++
	sess, ok := s.sessions[sessionID]
	if !ok || !sess.active || sess.userID != userID {
		return nil, core.ErrSessionNotFound
	}
	return cloneMessages(sess.messages), nil
}

func (s *memStore) SaveContext(ctx context.Context, userID int64, sessionID string, messages []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(userID, sessionID, messages)
}

func (s *memStore) saveLocked(userID int64, sessionID string, messages []core.Message) error {
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	if sess, ok := s.sessions[sessionID]; ok && sess.userID != userID {
		return core.ErrAccessDenied
	}
	s.deactivateOthersLocked(userID, sessionID)
	s.sessions[sessionID] = &memSession{userID: userID, messages: cloneMessages(messages), active: true, updated: s.now()}
	return nil
}

func (s *memStore) deactivateOthersLocked(userID int64, keep string) {
	for id, sess := range s.sessions {
		if id != keep && sess.userID == userID {
			sess.active = false
		}
	}
}

func (s *memStore) CreateSession(ctx context.Context, userID int64, sessionID string, seed []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return errors.New("duplicate session")
	}
	return s.saveLocked(userID, sessionID, seed)
}

func (s *memStore) ActiveSession(ctx context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.userID == userID && sess.active {
			return id, nil
		}
	}
	return "", core.ErrSessionNotFound
}

func (s *memStore) Deactivate(ctx context.Context, userID int64, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deactErr != nil {
		return false, s.deactErr
	}
	sess, ok := s.sessions[sessionID]
	if !ok || sess.userID != userID || !sess.active {
		return false, nil
	}
	sess.active = false
	return true, nil
}

func (s *memStore) DeactivateIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.active && sess.updated.Before(cutoff) {
			sess.active = false
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) SaveTurn(ctx context.Context, userID int64, sessionID string, messages []core.Message, records []core.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(userID, sessionID, messages); err != nil {
		return err
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *memStore) stored(sessionID string) (*memSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	cp := *sess
	cp.messages = cloneMessages(sess.messages)
	return &cp, true
}

func (s *memStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
