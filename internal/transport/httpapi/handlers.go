package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type handler struct {
	deps Deps
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func failKind(c *gin.Context, status int, kind core.ErrorKind, msg string) {
	c.JSON(status, gin.H{"error": msg, "error_kind": kind})
}

func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	case core.KindAccessDenied:
		return http.StatusForbidden
	case core.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

func (h *handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    core.RelayName,
		"version": core.RelayVersion,
		"status":  "running",
	})
}

func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

type chatReq struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

func (h *handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if d := h.deps.Chat.Admit(ctx, req.UserID); !d.Allowed {
		failKind(c, statusFor(d.Kind), d.Kind, d.Message)
		return
	}

	res := h.deps.Engine.Process(ctx, req.UserID, req.Message, req.SessionID)
	c.JSON(statusFor(res.Kind), res)
}

type clearReq struct {
	UserID    int64  `json:"user_id" binding:"required"`
	SessionID string `json:"session_id"`
}

func (h *handler) ClearSession(c *gin.Context) {
	var req clearReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	active, err := h.deps.Engine.Clear(c.Request.Context(), req.UserID, req.SessionID)
	if err != nil {
		log.FromCtx(c.Request.Context()).Error().Err(err).Msg("clear failed")
		fail(c, http.StatusInternalServerError, "failed to clear session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "History cleared", "session_id": active})
}

func (h *handler) SessionHistory(c *gin.Context) {
	records, err := h.deps.Engine.History(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		log.FromCtx(c.Request.Context()).Error().Err(err).Msg("history failed")
		fail(c, http.StatusInternalServerError, "history retrieval failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("session_id"), "records": records})
}

func (h *handler) UserHistory(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		fail(c, http.StatusBadRequest, "invalid limit")
		return
	}

	records, err := h.deps.Engine.UserHistory(c.Request.Context(), userID, limit)
	if err != nil {
		log.FromCtx(c.Request.Context()).Error().Err(err).Int64("user_id", userID).Msg("history failed")
		fail(c, http.StatusInternalServerError, "history retrieval failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "records": records})
}

func (h *handler) UserStats(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid user_id")
		return
	}

	stats, err := h.deps.Engine.Stats(c.Request.Context(), userID)
	if err != nil {
		log.FromCtx(c.Request.Context()).Error().Err(err).Int64("user_id", userID).Msg("stats failed")
		fail(c, http.StatusInternalServerError, "stats retrieval failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handler) GlobalStats(c *gin.Context) {
	stats, err := h.deps.Engine.GlobalStats(c.Request.Context())
	if err != nil {
		log.FromCtx(c.Request.Context()).Error().Err(err).Msg("global stats failed")
		fail(c, http.StatusInternalServerError, "stats retrieval failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}

type userReq struct {
	TelegramUserID int64  `json:"telegram_user_id" binding:"required"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
}

func (h *handler) UpsertUser(c *gin.Context) {
	var req userReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	profile := core.UserProfile{
		TelegramUserID: req.TelegramUserID,
		Username:       req.Username,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
	}
	if err := h.deps.Users.UpsertUser(c.Request.Context(), profile); err != nil {
		log.FromCtx(c.Request.Context()).Error().Err(err).Msg("user upsert failed")
		fail(c, http.StatusInternalServerError, "failed to save user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *handler) Cleanup(c *gin.Context) {
	n, err := h.deps.Engine.ReapExpired(c.Request.Context(), h.deps.SessionTimeout)
	if err != nil {
		log.FromCtx(c.Request.Context()).Error().Err(err).Msg("cleanup failed")
		fail(c, http.StatusInternalServerError, "cleanup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "reaped": n})
}
