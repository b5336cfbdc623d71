// Package main is the entrypoint for the AI Paathsala analysis server.
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

	"github.com/debabrata-png/aipaathsala1-sub000/internal/api"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/handler"
	mw "github.com/debabrata-png/aipaathsala1-sub000/internal/api/middleware"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/cache"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/config"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/directory"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/job"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/provider"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/room"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	classCacheTTL   = 5 * time.Minute
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"video_provider", cfg.Video.Provider,
		"content_provider", cfg.Content.Provider,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create providers and directory client
	videoProvider, err := provider.NewVideoProvider(cfg.Video)
	if err != nil {
		return fmt.Errorf("create video provider: %w", err)
	}
	contentProvider, err := provider.NewContentProvider(cfg.Content)
	if err != nil {
		return fmt.Errorf("create content provider: %w", err)
	}
	slog.Info("providers initialized",
		"video", videoProvider.Name(), "content", contentProvider.Name())

	dirClient := directory.NewCachedClient(
		directory.NewHTTPClient(cfg.Directory.BaseURL, cfg.Directory.Timeout),
		redisCache, classCacheTTL)

	// 6. Create store and services
	pgStore := store.NewPostgresStore(pool)

	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(pgStore, registry)
	rooms := room.NewService(registry, broadcaster, pgStore,
		cfg.Rooms.BacklogLimit, cfg.Rooms.SendBuffer)

	machine := job.NewMachine(pgStore, redisCache, broadcaster)
	worker := job.NewWorker(machine, videoProvider, contentProvider, cfg.Pipeline)

	// The reaper fails jobs orphaned by a crash or restart, which frees their
	// class slots. Runs until the shutdown signal cancels ctx.
	reaper := job.NewReaper(machine, pgStore, cfg.Pipeline)
	go reaper.Run(ctx)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Rooms.RatePerMinute)

	analysisHandler := handler.NewAnalysis(machine, worker, dirClient)
	roomsHandler := handler.NewRooms(rooms)
	socketHandler := handler.NewRoomSocket(rooms, cfg.Rooms.WSReadLimit)
	keysHandler := handler.NewKeys(pgStore)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: handler.Health(pgStore, redisCache),

		TriggerAnalysisHandler: analysisHandler.Trigger,
		AnalysisStatusHandler:  analysisHandler.Status,

		RoomHistoryHandler: roomsHandler.History,
		PostMessageHandler: roomsHandler.PostMessage,
		RoomSocketHandler:  socketHandler.Serve,

		CreateKeyHandler: keysHandler.Create,
		ListKeysHandler:  keysHandler.List,
		RevokeKeyHandler: keysHandler.Revoke,
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
