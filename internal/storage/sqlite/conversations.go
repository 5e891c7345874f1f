package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

// ConversationsRepo reads the append-only audit log written by SessionsRepo.SaveTurn.
type ConversationsRepo struct {
	db *sql.DB
}

func NewConversationsRepo(db *sql.DB) *ConversationsRepo {
	return &ConversationsRepo{db: db}
}

func (r *ConversationsRepo) ListBySession(ctx context.Context, sessionID string) ([]core.ConversationRecord, error) {
	query := `SELECT id, user_id, session_id, message_type, content, tokens_used, processing_time_ms, created_at FROM conversations WHERE session_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	return scanRecords(rows)
}

// ListByUser returns the newest records first.
func (r *ConversationsRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]core.ConversationRecord, error) {
	query := `SELECT id, user_id, session_id, message_type, content, tokens_used, processing_time_ms, created_at FROM conversations WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]core.ConversationRecord, error) {
	defer rows.Close()

	var records []core.ConversationRecord
	for rows.Next() {
		var rec core.ConversationRecord
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.SessionID,
			&rec.MessageType,
			&rec.Content,
			&rec.TokensUsed,
			&rec.ProcessingTimeMs,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ConversationsRepo) UserStats(ctx context.Context, userID int64) (core.UserStats, error) {
	stats := core.UserStats{UserID: userID}

	query := `SELECT COUNT(*), COALESCE(SUM(tokens_used), 0), COALESCE(SUM(processing_time_ms), 0) FROM conversations WHERE user_id = ?`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.TotalMessages, &stats.TotalTokens, &stats.TotalProcessingMs)
	if err != nil {
		return core.UserStats{}, fmt.Errorf("failed to query user conversations: %w", err)
	}

	query = `SELECT COUNT(*) FROM user_sessions WHERE user_id = ? AND is_active = 1`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.ActiveSessionCount); err != nil {
		return core.UserStats{}, fmt.Errorf("failed to count active sessions: %w", err)
	}

	return stats, nil
}

// GlobalStats aggregates the whole store; users seen at or after activeSince count as active.
func (r *ConversationsRepo) GlobalStats(ctx context.Context, activeSince time.Time) (core.GlobalStats, error) {
	var stats core.GlobalStats

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers)
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("failed to count users: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE last_seen >= ?`, activeSince.UTC()).Scan(&stats.ActiveUsers7d)
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("failed to count active users: %w", err)
	}

	query := `SELECT COUNT(*), COALESCE(SUM(tokens_used), 0) FROM conversations`
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.TotalConversations, &stats.TotalTokens); err != nil {
		return core.GlobalStats{}, fmt.Errorf("failed to aggregate conversations: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_sessions WHERE is_active = 1`).Scan(&stats.ActiveSessions)
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("failed to count active sessions: %w", err)
	}

	if stats.TotalConversations > 0 {
		stats.AvgTokensPerMessage = float64(stats.TotalTokens) / float64(stats.TotalConversations)
	}

	return stats, nil
}
