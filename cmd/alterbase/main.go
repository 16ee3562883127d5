package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alterbase/cdn/internal/auth"
	"github.com/alterbase/cdn/internal/cleanup"
	"github.com/alterbase/cdn/internal/config"
	"github.com/alterbase/cdn/internal/handlers"
	"github.com/alterbase/cdn/internal/lockout"
	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/middleware"
	"github.com/alterbase/cdn/internal/mirror"
	mirrors3 "github.com/alterbase/cdn/internal/mirror/s3"
	"github.com/alterbase/cdn/internal/ratelimit"
	"github.com/alterbase/cdn/internal/repository"
	"github.com/alterbase/cdn/internal/repository/postgres"
	"github.com/alterbase/cdn/internal/repository/sqlite"
	"github.com/alterbase/cdn/internal/service"
	"github.com/alterbase/cdn/internal/storage/filesystem"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting alterbase cdn",
		"port", cfg.Port,
		"max_file_size", cfg.MaxFileSize,
		"slug_length", cfg.SlugLength,
		"mirror_enabled", cfg.MirrorEnabled,
		"cleanup_enabled", cfg.CleanupEnabled,
		"admin_enabled", cfg.AdminPassword != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the metadata repository: PostgreSQL when DATABASE_URL is
	// set, SQLite otherwise
	var repo repository.FileRepository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 0)
		if err != nil {
			slog.Error("failed to initialize postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = postgres.NewFileRepository(pool)
		slog.Info("database initialized", "backend", "postgres")
	} else {
		db, err := sqlite.Initialize(cfg.DBPath)
		if err != nil {
			slog.Error("failed to initialize sqlite", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = sqlite.NewFileRepository(db)
		slog.Info("database initialized", "backend", "sqlite", "path", cfg.DBPath)
	}

	// Initialize local storage
	store, err := filesystem.NewFilesystemStorage(cfg.UploadDir)
	if err != nil {
		slog.Error("failed to initialize storage", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}
	slog.Info("upload directory ready", "path", cfg.UploadDir)

	counters := metrics.NewCounters()

	// Register the storage gauges backed by the repository
	prometheus.MustRegister(metrics.NewStorageCollector(func(ctx context.Context) (int64, int64, error) {
		stats, err := repo.GetStats(ctx)
		if err != nil {
			return 0, 0, err
		}
		return stats.TotalFiles, stats.StorageUsed, nil
	}))

	// Initialize the remote mirror. Invalid credentials fail at startup, not
	// on the first upload.
	var mirrorQueue *mirror.Queue
	var remoteClient mirror.Client
	if cfg.MirrorEnabled {
		client, err := mirrors3.New(ctx, mirrors3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
			Prefix:          cfg.S3Prefix,
		})
		if err != nil {
			slog.Error("failed to initialize S3 mirror", "error", err)
			os.Exit(1)
		}
		remoteClient = client

		mirrorQueue = mirror.NewQueue(client, store, repo, cfg.MirrorMaxAttempts, time.Second)
		mirrorQueue.Start(ctx, cfg.MirrorWorkers)
	}

	svc := service.NewUploadService(repo, store, mirrorQueue, counters, cfg.MaxFileSize, cfg.SlugLength)

	// Start the cleanup scheduler
	scheduler := cleanup.NewScheduler(
		repo,
		store,
		remoteClient,
		counters,
		time.Duration(cfg.RetentionHours)*time.Hour,
		cfg.MirrorEnabled,
	)
	if cfg.CleanupEnabled {
		go scheduler.Start(ctx, time.Duration(cfg.CleanupIntervalMinutes)*time.Minute)
	} else {
		slog.Info("cleanup scheduler disabled")
	}

	// Per-IP upload rate limiting
	limiter := ratelimit.NewPerMinute(cfg.RateLimitPerMinute)
	limiter.StartSweeper()
	defer limiter.Stop()

	startTime := time.Now()

	// Setup HTTP router
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", handlers.UploadHandler(svc, cfg))
	mux.HandleFunc("/files/", handlers.ServeHandler(svc, store, counters, cfg))
	mux.HandleFunc("/list", handlers.ListHandler(svc, cfg))
	mux.HandleFunc("/stats", handlers.StatsHandler(counters))
	mux.HandleFunc("/healthz", handlers.HealthHandler(repo, startTime))
	mux.Handle("/metrics", promhttp.Handler())

	// Admin routes (only enabled when a password is configured)
	if cfg.AdminPassword != "" {
		verifier, err := auth.NewPasswordVerifier(cfg.AdminPassword)
		if err != nil {
			slog.Error("failed to set up admin credentials", "error", err)
			os.Exit(1)
		}

		sessions := auth.NewSessionStore(12 * time.Hour)
		guard := lockout.New(
			cfg.AdminMaxFailures,
			time.Duration(cfg.AdminLockStep)*time.Second,
			time.Duration(cfg.AdminLockMax)*time.Second,
		)

		mux.HandleFunc("/admin/login", handlers.AdminLoginHandler(verifier, sessions, guard))
		mux.HandleFunc("/admin/logout", handlers.AdminLogoutHandler(sessions))
		mux.HandleFunc("/admin/files", handlers.AdminFilesHandler(repo, sessions))
		mux.HandleFunc("/admin/cleanup", handlers.AdminCleanupHandler(scheduler, sessions))

		// Drop expired sessions and stale lockout scopes periodically
		go func() {
			ticker := time.NewTicker(30 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sessions.Sweep()
					guard.Sweep()
				}
			}
		}()

		slog.Info("admin endpoints enabled")
	}

	// Wrap with middleware (innermost first: rate limit, then logging, then recovery)
	handler := middleware.RecoveryMiddleware(
		middleware.LoggingMiddleware(
			middleware.RateLimitMiddleware(limiter, middleware.UploadsOnly)(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// Drain in-flight requests before stopping the workers behind them:
		// an upload completing during the drain may still enqueue a mirror
		// task, so the queue must outlive the server.
		err := server.Shutdown(shutdownCtx)

		// Stop the queue before canceling the context so workers drain the
		// remaining tasks instead of abandoning them as pending.
		if mirrorQueue != nil {
			mirrorQueue.Stop()
		}
		cancel()

		if err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}
