package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/admission"
)

// Conversations is what the API needs from the conversation engine.
type Conversations interface {
	Process(ctx context.Context, userID int64, message, sessionID string) core.ConversationResult
	Clear(ctx context.Context, userID int64, sessionID string) (string, error)
	History(ctx context.Context, sessionID string) ([]core.ConversationRecord, error)
	UserHistory(ctx context.Context, userID int64, limit int) ([]core.ConversationRecord, error)
	Stats(ctx context.Context, userID int64) (core.UserStats, error)
	GlobalStats(ctx context.Context) (core.GlobalStats, error)
	ReapExpired(ctx context.Context, timeout time.Duration) (int, error)
}

type Deps struct {
	Engine         Conversations
	Chat           *admission.Pipeline
	Users          core.UserRepository
	SessionTimeout time.Duration
}

func NewRouter(ctx context.Context, secret string, deps Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(RequestID())
	r.Use(Logger(ctx))
	r.Use(Recovery())

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	h := &handler{deps: deps}

	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	authGroup := r.Group("/")
	authGroup.Use(AuthRequired(secret))
	authGroup.POST("/chat", h.Chat)
	authGroup.POST("/sessions/clear", h.ClearSession)
	authGroup.GET("/sessions/:session_id/history", h.SessionHistory)
	authGroup.GET("/users/:user_id/history", h.UserHistory)
	authGroup.GET("/stats", h.GlobalStats)
	authGroup.GET("/stats/:user_id", h.UserStats)
	authGroup.POST("/users", h.UpsertUser)
	authGroup.POST("/cleanup", h.Cleanup)
	return r
}
