package core

import "time"

const (
	RelayName          = "TuskRelay"
	RelayUserAgent     = "TuskRelay/0.1"
	RelayRepositoryURL = "https://github.com/sandevgo/tuskrelay"
	RelayVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenericFailureMessage is the only failure text a turn ever shows to a user.
const GenericFailureMessage = "Sorry, I encountered an error processing your request. Please try again."

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the durable record behind a session id.
type Session struct {
	ID            string    `json:"session_id"`
	UserID        int64     `json:"user_id"`
	Context       []Message `json:"context"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	IsActive      bool      `json:"is_active"`
}

// ConversationRecord is one side of a committed turn in the audit log.
type ConversationRecord struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	SessionID        string    `json:"session_id"`
	MessageType      string    `json:"message_type"`
	Content          string    `json:"content"`
	TokensUsed       int       `json:"tokens_used"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

type ConversationResult struct {
	Response         string    `json:"response"`
	SessionID        string    `json:"session_id"`
	Success          bool      `json:"success"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	TokensUsed       int       `json:"tokens_used"`
	Error            string    `json:"error,omitempty"`
	Kind             ErrorKind `json:"error_kind,omitempty"`
}

type UserStats struct {
	UserID             int64 `json:"user_id"`
	TotalMessages      int64 `json:"total_messages"`
	TotalTokens        int64 `json:"total_tokens"`
	TotalProcessingMs  int64 `json:"total_processing_ms"`
	ActiveSessionCount int64 `json:"active_session_count"`
}

type GlobalStats struct {
	TotalUsers          int64   `json:"total_users"`
	ActiveUsers7d       int64   `json:"active_users_7d"`
	TotalConversations  int64   `json:"total_conversations"`
	TotalTokens         int64   `json:"total_tokens"`
	AvgTokensPerMessage float64 `json:"avg_tokens_per_message"`
	ActiveSessions      int64   `json:"active_sessions"`
}

type UserProfile struct {
	TelegramUserID int64     `json:"telegram_user_id"`
	Username       string    `json:"username,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	LastSeen       time.Time `json:"last_seen,omitempty"`
}
