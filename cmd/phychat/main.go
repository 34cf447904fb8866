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

	"github.com/joho/godotenv"

	"github.com/group03/phychat-backend/internal/api"
	"github.com/group03/phychat-backend/internal/catalog"
	"github.com/group03/phychat-backend/internal/chance"
	"github.com/group03/phychat-backend/internal/config"
	"github.com/group03/phychat-backend/internal/health"
	"github.com/group03/phychat-backend/internal/metrics"
	"github.com/group03/phychat-backend/internal/recommend"
	"github.com/group03/phychat-backend/internal/services"
	"github.com/group03/phychat-backend/internal/storage"
	"github.com/group03/phychat-backend/internal/tutor"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting phychat backend",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"postgres", cfg.UsesPostgres(),
		"redis", cfg.UsesRedis(),
		"auth", len(cfg.Auth.APIKeys) > 0,
		"chat_rate_limit", cfg.Limits.ChatPerSecond,
	)

	m := metrics.NewMetrics()

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := services.NewRegistry()

	repo, catalogSource, err := openRepository(initCtx, cfg, registry)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	history := openHistory(initCtx, cfg, registry)

	// Engines share one random source
	rng := chance.New(cfg.Random.Seed)
	recommender := recommend.NewEngine(catalogSource, storage.NewProgressStore(repo, m), rng)
	tutorEngine := tutor.NewEngine(cfg.Tutor.UseMock, rng)
	slog.Info("tutor ready", "mock_ai", tutorEngine.UsesMock())

	// Warm the catalog cache; failures fall back to the built-in catalog
	slog.Info("challenge catalog ready", "count", len(recommender.Challenges(initCtx)))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start health monitor
	monitor := health.NewMonitor(registry, cfg.Health.Interval, m)
	monitor.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg, api.Dependencies{
		Recommender: recommender,
		Tutor:       tutorEngine,
		History:     history,
		Readiness:   monitor,
		Metrics:     m,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := server.Close(); err != nil {
		slog.Error("server close error", "error", err)
	}
	if err := registry.Close(); err != nil {
		slog.Error("health checker close error", "error", err)
	}
	if err := history.Close(); err != nil {
		slog.Error("history store close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("phychat backend stopped")
}

// openRepository selects the progress repository and the catalog source.
// PostgreSQL serves both when configured. Otherwise progress is kept in
// memory and the catalog comes from the YAML file, or the built-in catalog
// when the file cannot be loaded.
func openRepository(ctx context.Context, cfg *config.Config, registry *services.Registry) (storage.Repository, recommend.CatalogSource, error) {
	if cfg.UsesPostgres() {
		repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:      cfg.Database.DSN,
			MaxConns: int32(cfg.Database.MaxConns),
			MinConns: int32(cfg.Database.MinConns),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database repository: %w", err)
		}

		// Run database migrations
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		applied, err := repo.Migrate(ctx, cfg.Database.MigrationsDir)
		if err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("database connected successfully", "migrations_applied", applied)

		checker, err := services.NewPostgresChecker(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Warn("postgres health probe unavailable", "error", err)
			registry.Register("postgres", services.NewPingFunc("postgres", repo.Ping))
		} else {
			registry.Register("postgres", checker)
		}

		return repo, repo, nil
	}

	slog.Warn("DATABASE_DSN not set, progress is kept in memory")

	loader := catalog.NewLoader(cfg.Catalog.File)
	if err := loader.Load(); err != nil {
		slog.Warn("catalog file unavailable, using built-in challenges", "file", cfg.Catalog.File, "error", err)
		repo := storage.NewMemoryRepository()
		return repo, repo, nil
	}

	return storage.NewMemoryRepository(loader.List()...), loader, nil
}

// openHistory connects the conversation history store. A Redis outage at
// startup degrades to in-memory history.
func openHistory(ctx context.Context, cfg *config.Config, registry *services.Registry) storage.HistoryStore {
	if !cfg.UsesRedis() {
		return storage.NewMemoryHistoryStore(cfg.History.MaxMessages)
	}

	registry.Register("redis", services.NewRedisChecker(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB))

	store, err := storage.NewRedisHistoryStore(ctx, storage.RedisHistoryConfig{
		Address:     cfg.Redis.Address,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxMessages: cfg.History.MaxMessages,
		TTL:         cfg.History.TTL,
	})
	if err != nil {
		slog.Warn("redis unavailable, conversation history is kept in memory", "error", err)
		return storage.NewMemoryHistoryStore(cfg.History.MaxMessages)
	}

	slog.Info("redis connected successfully", "address", cfg.Redis.Address)
	return store
}
