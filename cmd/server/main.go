package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/quizboard/internal/config"
	"github.com/playperu/quizboard/internal/database"
	"github.com/playperu/quizboard/internal/handler/health"
	"github.com/playperu/quizboard/internal/live"
	"github.com/playperu/quizboard/internal/migrations"
	"github.com/playperu/quizboard/internal/quizboard"
	"github.com/playperu/quizboard/internal/ratelimit"
	"github.com/playperu/quizboard/internal/server"
	"github.com/playperu/quizboard/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	startedAt := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	results, err := store.New(ctx, db)
	if err != nil {
		return fmt.Errorf("opening result store: %w", err)
	}

	checks := map[string]health.Checker{"sqlite": dbChecker{db}}

	// --- Rate limiting ---
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis", "limit", cfg.RateLimitRequests, "window", cfg.RateLimitWindow)

		limiter = ratelimit.NewRedis(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow)
		checks["redis"] = redisChecker{rdb}
	} else {
		logger.Info("using in-process rate limiter", "limit", cfg.RateLimitRequests, "window", cfg.RateLimitWindow)
		limiter = ratelimit.NewMemory(cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	// --- Quiz pipeline ---
	hub := live.NewHub()
	broadcaster := live.NewBroadcaster(hub, results, logger)
	svc := quizboard.NewService(results, broadcaster, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, cfg.ShutdownTimeout, server.Deps{
		Logger:      logger,
		Service:     svc,
		Hub:         hub,
		Broadcaster: broadcaster,
		Limiter:     limiter,
		Checks:      checks,
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
		StartedAt:   startedAt,

		TrustedProxies: cfg.ProxyPrefixes(),
	})

	// --- Run ---
	// The broadcaster outlives the HTTP server so submissions still in
	// flight during shutdown can finish their pipeline.
	bctx, stopBroadcaster := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBroadcaster()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return broadcaster.Run(bctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		err := srv.Shutdown(context.Background())
		stopBroadcaster()
		return err
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
