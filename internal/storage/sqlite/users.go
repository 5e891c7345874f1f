package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

var ErrUserNotFound = errors.New("user not found")

type UsersRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db, now: time.Now}
}

// UpsertUser registers the profile or refreshes its names and last_seen.
func (r *UsersRepo) UpsertUser(ctx context.Context, p core.UserProfile) error {
	seen := p.LastSeen
	if seen.IsZero() {
		seen = r.now()
	}

	query := `
		INSERT INTO users (telegram_user_id, username, first_name, last_name, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(telegram_user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			last_seen = excluded.last_seen`
	_, err := r.db.ExecContext(ctx, query, p.TelegramUserID, p.Username, p.FirstName, p.LastName, seen.UTC(), seen.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *UsersRepo) GetUser(ctx context.Context, telegramUserID int64) (core.UserProfile, error) {
	var p core.UserProfile
	query := `SELECT telegram_user_id, username, first_name, last_name, created_at, last_seen FROM users WHERE telegram_user_id = ?`
	err := r.db.QueryRowContext(ctx, query, telegramUserID).Scan(
		&p.TelegramUserID,
		&p.Username,
		&p.FirstName,
		&p.LastName,
		&p.CreatedAt,
		&p.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, ErrUserNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("failed to query user: %w", err)
	}
	return p, nil
}
