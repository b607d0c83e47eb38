package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/config"
	"github.com/tradeduel/match-engine/internal/feed"
	"github.com/tradeduel/match-engine/internal/match"
	"github.com/tradeduel/match-engine/internal/metrics"
	"github.com/tradeduel/match-engine/internal/risk"
	"github.com/tradeduel/match-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	// --- Store ---
	// Constructed once here and passed into every component that needs it;
	// nothing reaches for ambient globals.
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid redis_url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("database_url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price feed ---
	adapter := feed.NewAdapter(cfg.Feed.QueueSize)

	var src feed.Source
	switch cfg.Feed.Mode {
	case "poll":
		src = feed.NewPollSource(cfg.Feed.QuoteEndpoint, cfg.Symbols, cfg.Feed.PollInterval.Std())
		slog.Info("polling quote endpoint", "endpoint", cfg.Feed.QuoteEndpoint, "interval", cfg.Feed.PollInterval.Std())
	default:
		src = feed.NewSimulatedSource(cfg.Symbols, cfg.Feed.PollInterval.Std(), decimal.NewFromInt(100), time.Now().UnixNano())
		slog.Warn("using simulated price feed")
	}

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	go func() {
		if err := adapter.Run(feedCtx, src); err != nil && feedCtx.Err() == nil {
			slog.Error("price feed stopped", "err", err)
		}
	}()

	// --- Risk limits ---
	maxPosition, maxOrder := cfg.Risk.Limits()
	limiter := risk.NewLimiter(maxPosition, maxOrder)

	// --- WebSocket hub ---
	wsHub := match.NewWSHub()
	go wsHub.Run()

	// --- Orchestrator ---
	svc := match.NewService(st, adapter, limiter, wsHub, match.Defaults{
		DurationMinutes: cfg.Match.DurationMinutes,
		InitialBalance:  cfg.Match.InitialBalanceDecimal(),
		Symbols:         cfg.Symbols,
	})

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"match-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live match events.
		r.Get("/ws", wsHub.HandleWS)
		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("match-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down match-engine...")
	stopFeed()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("match-engine stopped")
}
