package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/board"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/catalog"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/config"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/logging"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/push"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/store"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/stream"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	logger, err := logging.New("odds-board", cfg.Env)
	if err != nil {
		fmt.Printf("❌ Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// Store
	quotes := store.New(models.FilterState{
		Sport:   cfg.Board.Sport,
		Markets: cfg.Board.Markets,
		Books:   cfg.Board.Books,
	})
	quotes.Subscribe(collector.ObserveSnapshot)

	// Push hub
	hub := push.NewHub(cfg.Server.PushThrottle, logger.Named("push"))
	go hub.Run(ctx)
	quotes.Subscribe(hub.Notify)

	// Catalog
	source, closeSource, err := buildCatalog(ctx, cfg.Catalog, logger)
	if err != nil {
		logger.Fatal("failed to set up catalog", zap.Error(err))
	}
	defer closeSource()

	// Feed
	client := stream.NewClient(stream.Options{
		URL:          cfg.Feed.URL,
		Subscription: models.SubscriptionFilter{Sports: []string{cfg.Board.Sport}},
		MaxAttempts:  cfg.Feed.MaxReconnectAttempts,
		BaseDelay:    cfg.Feed.BaseDelay,
		MaxDelay:     cfg.Feed.MaxDelay,
		Observer:     collector,
		Logger:       logger.Named("stream"),
	}, quotes)

	b := board.New(board.Options{
		Store:      quotes,
		Source:     source,
		Feed:       client,
		SharpBooks: cfg.Board.SharpBooks,
		Logger:     logger.Named("board"),
	})
	defer b.Close()

	loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
	b.Start(loadCtx)
	loadCancel()

	// HTTP
	h := handlers.NewHandler(b, logger.Named("http"))
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler: handlers.NewRouter(h, handlers.Mounts{
			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Push:    push.NewHandler(ctx, hub, cfg.Server.CORSOrigins, logger.Named("push")),
		}, cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("odds board listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("feed", cfg.Feed.URL),
			zap.String("sport", cfg.Board.Sport))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case sig := <-shutdown:
		logger.Info("received signal", zap.String("signal", sig.String()))
	}

	client.Disconnect()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		server.Close()
	}

	logger.Info("shutdown complete")
}

// buildCatalog picks Alexandria when a DSN is configured, the api-gateway
// otherwise, and puts redis in front when a URL is configured
func buildCatalog(ctx context.Context, cfg config.CatalogConfig, logger *zap.Logger) (catalog.Source, func(), error) {
	var source catalog.Source
	closers := []func(){}

	if cfg.AlexandriaDSN != "" {
		pg, err := catalog.NewPostgresSource(cfg.AlexandriaDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { pg.Close() })
		source = pg
		logger.Info("catalog: connected to Alexandria")
	} else {
		source = catalog.NewRESTSource(cfg.APIGatewayURL, nil)
		logger.Info("catalog: using api-gateway", zap.String("url", cfg.APIGatewayURL))
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
			rdb.Close()
		} else {
			closers = append(closers, func() { rdb.Close() })
			source = catalog.NewRedisCache(source, rdb, cfg.CacheTTL, logger.Named("catalog"))
			logger.Info("catalog: redis cache enabled", zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	return source, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
