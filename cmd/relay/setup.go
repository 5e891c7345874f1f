package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/providers/llm"
	"github.com/sandevgo/tuskrelay/internal/service/admission"
	"github.com/sandevgo/tuskrelay/internal/service/command"
	"github.com/sandevgo/tuskrelay/internal/service/conversation"
	"github.com/sandevgo/tuskrelay/internal/service/session"
	"github.com/sandevgo/tuskrelay/internal/service/tasks"
	"github.com/sandevgo/tuskrelay/internal/storage/sqlite"
	"github.com/sandevgo/tuskrelay/internal/transport/httpapi"
	"github.com/sandevgo/tuskrelay/internal/transport/telegram"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/pkg/srv"
)

// relay is the wired core shared by every subcommand.
type relay struct {
	appCfg  *config.AppConfig
	access  *config.AccessConfig
	db      *sql.DB
	users   *sqlite.UsersRepo
	limiter *admission.Limiter
	engine  *conversation.Engine
	router  *command.Router
	pool    *tasks.Pool

	accessGate *admission.Pipeline
	chatGate   *admission.Pipeline
	adminGate  *admission.Pipeline
}

func newRelay(ctx context.Context) (*relay, error) {
	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("failed to init env: %w", err)
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)
	rateCfg := config.NewRateLimitConfig(ctx)
	accessCfg := config.NewAccessConfig(ctx)

	// 2. Storage
	if err := os.MkdirAll(appCfg.GetRuntimePath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runtime dir: %w", err)
	}
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	sessionsRepo := sqlite.NewSessionsRepo(db)
	conversationsRepo := sqlite.NewConversationsRepo(db)

	// 3. AI Provider
	backend, err := llm.NewProvider(ctx, llmCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	// 4. Sessions and conversation engine
	cache := session.NewCache(sessionsRepo, session.WithTTL(appCfg.CacheTTL))
	manager := session.NewManager(sessionsRepo, cache, appCfg.GetSystemPrompt(), appCfg.GetContextMaxMessages())
	engine := conversation.NewEngine(manager, backend, llm.NewTokenEstimator(), conversationsRepo, conversation.Config{
		ModelTimeout: appCfg.GetModelTimeout(),
		MaxTokens:    appCfg.GetMaxTokens(),
		Temperature:  llmCfg.GetTemperature(),
	})

	// 5. Admission
	limiter := admission.NewLimiter(rateCfg.Messages, rateCfg.Window)

	// 6. Background tasks
	poolCfg := tasks.DefaultConfig()
	poolCfg.Workers = appCfg.WorkerPoolSize
	poolCfg.QueueSize = appCfg.WorkerQueueSize

	return &relay{
		appCfg:     appCfg,
		access:     accessCfg,
		db:         db,
		users:      sqlite.NewUsersRepo(db),
		limiter:    limiter,
		engine:     engine,
		router:     command.NewRouter(engine, accessCfg, appCfg.GetSessionTimeout()),
		pool:       tasks.NewPool(poolCfg),
		accessGate: admission.New(admission.AccessList(accessCfg)),
		chatGate:   admission.New(admission.AccessList(accessCfg), admission.RateLimit(limiter)),
		adminGate:  admission.New(admission.AdminOnly(accessCfg)),
	}, nil
}

// reap deactivates idle sessions and drops idle rate windows.
func (r *relay) reap(ctx context.Context) error {
	if _, err := r.engine.ReapExpired(ctx, r.appCfg.GetSessionTimeout()); err != nil {
		return err
	}
	if n := r.limiter.Sweep(); n > 0 {
		log.FromCtx(ctx).Debug().Int("windows", n).Msg("rate windows swept")
	}
	return nil
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	r, err := newRelay(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize relay")
	}
	services = append(services, srv.NewCleanup(r.db.Close))
	services = append(services, r.pool)

	// Reaper runs only when the host asks for a cadence
	if r.appCfg.ReapInterval > 0 {
		services = append(services, srv.NewTicker("session_reaper", r.appCfg.ReapInterval, r.reap))
	}

	// Transports
	transports, err := initTransports(ctx, r)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	if len(transports) == 0 {
		logger.Warn().Msg("no transports enabled, set ENABLE_TELEGRAM or ENABLE_API")
	}
	services = append(services, transports...)

	return services
}

func initTransports(ctx context.Context, r *relay) ([]srv.Service, error) {
	var services []srv.Service

	// Telegram Bot
	if r.appCfg.IsTelegramSelected() {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, telegram.Deps{
			Engine: r.engine,
			Router: r.router,
			Access: r.accessGate,
			Chat:   r.chatGate,
			Admin:  r.adminGate,
			Users:  r.users,
			Tasks:  r.pool,
		})
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	// HTTP API
	if r.appCfg.IsAPISelected() {
		apiCfg := config.NewAPIConfig(ctx)
		services = append(services, httpapi.NewServer(ctx, apiCfg, httpapi.Deps{
			Engine:         r.engine,
			Chat:           r.chatGate,
			Users:          r.users,
			SessionTimeout: r.appCfg.GetSessionTimeout(),
		}))
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)

	for _, envFile := range []string{filepath.Join(runtimePath, ".env"), ".env"} {
		if _, err := os.Stat(envFile); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := godotenv.Load(envFile); err != nil {
			logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
			return err
		}
		logger.Debug().Str("path", envFile).Msg("loaded .env file")
	}
	return nil
}

// withRelay runs fn against a freshly wired relay and closes storage afterwards.
func withRelay(ctx context.Context, fn func(ctx context.Context, r *relay) error) error {
	r, err := newRelay(ctx)
	if err != nil {
		return err
	}
	defer r.db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	return fn(ctx, r)
}
