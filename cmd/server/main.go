// Study planner API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/studyplan/internal/agent"
	"github.com/ashureev/studyplan/internal/api"
	"github.com/ashureev/studyplan/internal/auth"
	"github.com/ashureev/studyplan/internal/config"
	"github.com/ashureev/studyplan/internal/identity"
	"github.com/ashureev/studyplan/internal/middleware"
	"github.com/ashureev/studyplan/internal/planner"
	"github.com/ashureev/studyplan/internal/session"
	"github.com/ashureev/studyplan/internal/store"
	"github.com/ashureev/studyplan/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "session_backend", cfg.Session.Backend)

	if _, err := store.Init(cfg.DBPath); err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	repo := store.Handle()
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	sessionStore, closeSessionStore, err := newSessionStore(cfg, repo)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer closeSessionStore()
	sessions := session.NewManager(sessionStore, repo, session.WithTTL(cfg.Session.TTL))
	sessions.StartCleanupRoutine(cfg.Session.CleanupInterval)
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Error("Failed to stop session cleanup", "error", closeErr)
		}
	}()

	authSvc := auth.NewService(repo, sessions, auth.NewHasher(cfg.BcryptCost))
	created, err := authSvc.EnsureBootstrapAdmin(context.Background(), cfg.BootstrapAdmin.Username, cfg.BootstrapAdmin.Password)
	if err != nil {
		slog.Error("Failed to create bootstrap admin", "error", err)
		os.Exit(1)
	}
	if created {
		slog.Info("Bootstrap admin created", "username", cfg.BootstrapAdmin.Username)
	}

	gate := auth.NewGate(sessions)
	guard := identity.NewGuard(gate, api.WriteError)

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	aiSvc := agent.NewService(repo, agent.NewHTTPCompleter(cfg.AI.RequestTimeout), agent.Options{
		PlanMaxTokens:   cfg.AI.PlanMaxTokens,
		ChatMaxTokens:   cfg.AI.ChatMaxTokens,
		Temperature:     cfg.AI.Temperature,
		DefaultModel:    cfg.AI.DefaultModel,
		DefaultEndpoint: cfg.AI.DefaultEndpoint,
	})
	aiHandler := agent.NewHandler(aiSvc, guard, gate, agent.HandlerOptions{
		Limiter:        agent.NewRateLimiter(cfg.AI.RateLimit, cfg.AI.RateWindow),
		Log:            conversationLogger,
		OriginPatterns: cfg.OriginPatterns(),
	})
	defer aiHandler.Close()

	apiHandler := api.NewHandler(repo, authSvc, planner.NewMatcher(repo), guard, aiHandler.CloseSession)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logger(identity.TokenQueryParam))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(corsOrigins(cfg)))

	apiHandler.RegisterRoutes(r)
	aiHandler.RegisterRoutes(r)

	if cfg.StaticDir != "" {
		r.Handle("/*", web.SPAHandler(cfg.StaticDir))
		slog.Info("Serving frontend", "dir", cfg.StaticDir)
	}

	// No WriteTimeout: chat sockets are long-lived and set their own write deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped successfully")
}

// newSessionStore builds the configured session backend. The returned func
// releases any connection it opened.
func newSessionStore(cfg *config.Config, repo *store.SQLiteStore) (session.Store, func(), error) {
	backend := session.Backend(cfg.Session.Backend)
	opts := []session.StoreOption{session.WithDatabase(repo)}
	release := func() {}
	if backend == session.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		opts = append(opts, session.WithRedisClient(client))
		release = func() {
			if err := client.Close(); err != nil {
				slog.Error("Failed to close redis client", "error", err)
			}
		}
	}
	st, err := session.NewStore(backend, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return st, release, nil
}

// corsOrigins allows any origin in development and only the frontend otherwise.
func corsOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
