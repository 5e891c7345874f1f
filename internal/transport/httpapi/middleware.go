package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	ctxKey          = "ctx"
)

// RequestID tags the request with a ULID, keeping one supplied by the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = ulid.Make().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger puts a request-scoped zerolog logger into the request context and logs the outcome.
func Logger(base context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		logger := log.FromCtx(base).With().
			Str("request_id", c.GetString(requestIDKey)).
			Logger()
		ctx := logger.WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		log.FromCtx(c.Request.Context()).Error().Interface("panic", err).Msg("handler panicked")
		fail(c, http.StatusInternalServerError, "internal error")
	})
}

// AuthRequired accepts the shared secret itself or an HS256 JWT signed with it.
func AuthRequired(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || token == "" {
			fail(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), key) == 1 {
			c.Next()
			return
		}

		_, err := parser.Parse(token, func(t *jwt.Token) (any, error) { return key, nil })
		if err != nil {
			fail(c, http.StatusUnauthorized, "invalid API key")
			c.Abort()
			return
		}
		c.Next()
	}
}
