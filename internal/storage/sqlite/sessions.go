package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

type SessionsRepo struct {
	db  *sql.DB
	now func() time.Time
}

type SessionsOption func(*SessionsRepo)

func WithClock(now func() time.Time) SessionsOption {
	return func(r *SessionsRepo) { r.now = now }
}

func NewSessionsRepo(db *sql.DB, opts ...SessionsOption) *SessionsRepo {
	r := &SessionsRepo{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadContext returns the stored context of an active session owned by userID.
// Inactive, unknown and foreign sessions all yield core.ErrSessionNotFound.
func (r *SessionsRepo) LoadContext(ctx context.Context, userID int64, sessionID string) ([]core.Message, error) {
	var (
		owner    int64
		raw      string
		isActive bool
	)

	query := `SELECT user_id, context, is_active FROM user_sessions WHERE session_id = ?`
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&owner, &raw, &isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if owner != userID || !isActive {
		return nil, core.ErrSessionNotFound
	}

	var messages []core.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Str("session_id", sessionID).Msg("loaded session context")
	return messages, nil
}

// SaveContext upserts the context and makes the session the user's only active one.
func (r *SessionsRepo) SaveContext(ctx context.Context, userID int64, sessionID string, messages []core.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.saveContextTx(ctx, tx, userID, sessionID, messages); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SessionsRepo) CreateSession(ctx context.Context, userID int64, sessionID string, seed []core.Message) error {
	raw, err := json.Marshal(seed)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deactivateOthers(ctx, tx, userID, sessionID); err != nil {
		return err
	}

	now := r.now().UTC()
	query := `INSERT INTO user_sessions (session_id, user_id, context, created_at, last_updated_at, is_active) VALUES (?, ?, ?, ?, ?, 1)`
	if _, err := tx.ExecContext(ctx, query, sessionID, userID, string(raw), now, now); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return tx.Commit()
}

func (r *SessionsRepo) ActiveSession(ctx context.Context, userID int64) (string, error) {
	var sessionID string
	query := `SELECT session_id FROM user_sessions WHERE user_id = ? AND is_active = 1 ORDER BY last_updated_at DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query active session: %w", err)
	}
	return sessionID, nil
}

// Deactivate reports whether an active session was switched off.
func (r *SessionsRepo) Deactivate(ctx context.Context, userID int64, sessionID string) (bool, error) {
	query := `UPDATE user_sessions SET is_active = 0 WHERE session_id = ? AND user_id = ? AND is_active = 1`
	res, err := r.db.ExecContext(ctx, query, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeactivateIdle switches off every active session untouched since cutoff and returns their ids.
func (r *SessionsRepo) DeactivateIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `UPDATE user_sessions SET is_active = 0 WHERE is_active = 1 AND last_updated_at < ? RETURNING session_id`
	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate idle sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveTurn stores the context and appends the audit records in one transaction.
func (r *SessionsRepo) SaveTurn(
	ctx context.Context,
	userID int64,
	sessionID string,
	messages []core.Message,
	records []core.ConversationRecord,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.saveContextTx(ctx, tx, userID, sessionID, messages); err != nil {
		return err
	}

	query := `INSERT INTO conversations (user_id, session_id, message_type, content, tokens_used, processing_time_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, rec := range records {
		ts := rec.Timestamp
		if ts.IsZero() {
			ts = r.now()
		}
		_, err := tx.ExecContext(ctx, query, userID, sessionID, rec.MessageType, rec.Content, rec.TokensUsed, rec.ProcessingTimeMs, ts.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert conversation record: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SessionsRepo) saveContextTx(ctx context.Context, tx *sql.Tx, userID int64, sessionID string, messages []core.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	var owner int64
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM user_sessions WHERE session_id = ?`, sessionID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to query session owner: %w", err)
	case owner != userID:
		return fmt.Errorf("session %s is owned by another user: %w", sessionID, core.ErrAccessDenied)
	}

	if err := deactivateOthers(ctx, tx, userID, sessionID); err != nil {
		return err
	}

	now := r.now().UTC()
	query := `
		INSERT INTO user_sessions (session_id, user_id, context, created_at, last_updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(session_id) DO UPDATE SET
			context = excluded.context,
			last_updated_at = excluded.last_updated_at,
			is_active = 1`
	if _, err := tx.ExecContext(ctx, query, sessionID, userID, string(raw), now, now); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}

func deactivateOthers(ctx context.Context, tx *sql.Tx, userID int64, keep string) error {
	query := `UPDATE user_sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1 AND session_id != ?`
	if _, err := tx.ExecContext(ctx, query, userID, keep); err != nil {
		return fmt.Errorf("failed to deactivate previous sessions: %w", err)
	}
	return nil
}
