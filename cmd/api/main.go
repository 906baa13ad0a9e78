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

	"golang.org/x/sync/errgroup"

	"github.com/retroarcade/hiscore/internal/app"
	"github.com/retroarcade/hiscore/internal/auth"
	"github.com/retroarcade/hiscore/internal/feed"
	"github.com/retroarcade/hiscore/internal/guard"
	"github.com/retroarcade/hiscore/internal/infra"
	"github.com/retroarcade/hiscore/internal/provider"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.AllowInsecureDefaults {
		logger.Warn("running with insecure defaults allowed")
	}

	if cfg.MigrateOnStart {
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	cache, err := infra.NewLeaderboardCache(ctx, cfg.RedisURL, cfg.LeaderboardTTL, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer cache.Close()

	store, err := infra.NewObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAdminExpiry)

	genai := provider.NewGenAIClient(cfg.GenAIBaseURL, cfg.GenAIAPIKey, logger)
	services := app.NewServices(pool, jwtMgr, app.Externals{
		Store:   store,
		AI:      genai,
		Fetcher: provider.NewImageFetcher(cfg.MaxImageBytes),
		Cache:   cache,
	}, cfg, logger)
	submissionSvc := services.Submissions
	submitLimiter := guard.NewRateLimiter(cfg.SubmissionRateLimit, cfg.SubmissionRateWindow)
	loginLimiter := guard.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := services.AdminAuth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, "Event admin"); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	broker := feed.NewBroker(logger)
	listener := feed.NewListener(pool, broker, logger)

	sched, err := infra.NewScheduler(ctx, logger)
	if err != nil {
		return err
	}
	if err := sched.Every("stale-triage-sweep", cfg.TriageSweepInterval, func(ctx context.Context) error {
		n, err := submissionSvc.SweepStaleTriage(ctx, cfg.TriageStaleAfter)
		if n > 0 {
			logger.Warn("stale submissions rejected", "count", n)
		}
		return err
	}); err != nil {
		return err
	}
	if err := sched.Every("submission-rate-prune", cfg.SubmissionRateWindow, func(context.Context) error {
		submitLimiter.Prune()
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Every("login-rate-prune", cfg.LoginRateWindow, func(context.Context) error {
		loginLimiter.Prune()
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Every("login-attempt-prune", time.Hour, func(ctx context.Context) error {
		n, err := services.AdminAuth.PruneLoginAttempts(ctx, 24*time.Hour)
		if n > 0 {
			logger.Info("pruned login attempts", "count", n)
		}
		return err
	}); err != nil {
		return err
	}

	router := app.NewRouter(app.RouterDeps{
		DB:                pool,
		JWTMgr:            jwtMgr,
		Broker:            broker,
		SubmitLimiter:     submitLimiter,
		LoginLimiter:      loginLimiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Services:          services,
		AllowedOrigins:    cfg.CORSOrigins(),
		MaxImageBytes:     cfg.MaxImageBytes,
		Logger:            logger,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.UploadTimeout + 15*time.Second,
		WriteTimeout:      cfg.UploadTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return services.Leaderboard.InvalidateOnChange(gctx, broker) })
	g.Go(func() error { return sched.Run(gctx) })

	err = g.Wait()

	// Triage writes must land before the pool closes.
	submissionSvc.Wait()
	if err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
