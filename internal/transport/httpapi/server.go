package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the relay over JSON/HTTP.
type Server struct {
	srv *http.Server
}

func NewServer(ctx context.Context, cfg *config.APIConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           NewRouter(ctx, cfg.SecretKey, deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.srv.Addr).Msg("starting http api")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests. ctx is usually already cancelled here.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
