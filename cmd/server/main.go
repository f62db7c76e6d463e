package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agrisync/agrisync/internal/config"
	"github.com/agrisync/agrisync/internal/server/coordinator"
	"github.com/agrisync/agrisync/internal/server/handlers"
	"github.com/agrisync/agrisync/internal/server/middleware"
	"github.com/agrisync/agrisync/internal/server/regions"
	"github.com/agrisync/agrisync/internal/server/storage"
	"github.com/agrisync/agrisync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// The owner registry is deployment-wide; record stores are one per
	// region so an owner's data never leaves its sovereignty partition.
	registry, err := sqlite.New(ctx, filepath.Join(cfg.Storage.DataDir, "registry.db"))
	if err != nil {
		return fmt.Errorf("failed to open registry store: %w", err)
	}
	defer closeStore(logger, "registry", registry)

	stores := make(map[string]storage.RecordStorage, len(cfg.Storage.Regions))
	for _, region := range cfg.Storage.Regions {
		s, err := sqlite.New(ctx, filepath.Join(cfg.Storage.DataDir, region+".db"))
		if err != nil {
			return fmt.Errorf("failed to open store for region %s: %w", region, err)
		}
		defer closeStore(logger, region, s)
		stores[region] = s
	}

	router := regions.NewRouter(registry, stores)
	coord := coordinator.New(router, logger)

	jwtConfig := handlers.JWTConfig{
		Secret:          []byte(cfg.JWT.Secret),
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
	}

	authHandler := handlers.NewAuthHandler(logger, registry, registry, router, jwtConfig)
	syncHandler := handlers.NewSyncHandler(logger, coord, cfg.Sync.MaxPushBatch, cfg.Sync.PullPageSize)
	healthHandler := handlers.NewHealthHandler(logger, router, Version)

	authed := middleware.AuthMiddleware(logger, jwtConfig)
	limited := middleware.RateLimitMiddleware(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/auth/register", limited(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/login", limited(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/v1/auth/refresh", limited(http.HandlerFunc(authHandler.Refresh)))
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.Handle("POST /api/v1/sync/push", authed(http.HandlerFunc(syncHandler.Push)))
	mux.Handle("GET /api/v1/sync/pull", authed(http.HandlerFunc(syncHandler.Pull)))
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(
			middleware.SnappyMiddleware(logger)(mux)))

	go coord.RunPurgeLoop(ctx, cfg.Sync.PurgeInterval, cfg.Sync.TombstoneRetention)
	go runTokenSweep(ctx, logger, registry)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", cfg.Server.Addr,
			"regions", router.Regions(),
			"version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

// runTokenSweep drops expired refresh tokens once an hour so the registry
// does not accumulate rows for devices that never log out.
func runTokenSweep(ctx context.Context, logger *slog.Logger, tokens storage.TokenStorage) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := tokens.DeleteExpiredTokens(ctx)
			if err != nil {
				logger.Error("expired token sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("expired tokens removed", "count", deleted)
			}
		}
	}
}

func closeStore(logger *slog.Logger, name string, s *sqlite.Storage) {
	if err := s.Close(); err != nil {
		logger.Error("failed to close store", "store", name, "error", err)
	}
}

func printVersion() {
	fmt.Printf("AgriSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
