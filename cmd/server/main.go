// Command server runs the DEX swap order-execution pipeline: it wires the
// DEX router, reliable queue, history store, subscriber hub, chain client,
// and HTTP/WebSocket surface together and serves traffic until a shutdown
// signal arrives. Process wiring and the double-signal graceful shutdown
// are grounded on VladislavFirsov-solana-token-lab's cmd/server/main.go and
// the teacher's own cmd/server/main.go signal-handling goroutine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/chain"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/config"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/dexvenue"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/history"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/httpapi"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/hub"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/intake"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/logging"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/metrics"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/queue"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/ratelimit"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/router"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Env: cfg.NodeEnv})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	defer logger.Sync()

	signerKey, err := chain.ParseWalletPrivateKey(cfg.WalletPrivateKey)
	if err != nil {
		logger.Error("invalid WALLET_PRIVATE_KEY", zap.Error(err))
		return 1
	}

	historyStore, closeHistory, err := buildHistoryStore(cfg, logger)
	if err != nil {
		logger.Error("failed to build history store", zap.Error(err))
		return 1
	}
	defer closeHistory()

	reliableQueue, closeQueue, err := buildQueue(cfg, logger)
	if err != nil {
		logger.Error("failed to build queue", zap.Error(err))
		return 1
	}
	defer closeQueue()

	m := metrics.New()
	hubInstance := hub.New()
	chainClient := chain.New(cfg.SolanaRPCURL, chain.Commitment(cfg.SolanaCommitment), 30*time.Second)

	dexRouter := router.New([]dexvenue.Venue{
		dexvenue.NewRaydiumVenue(dexvenue.DefaultRaydiumPools()),
		dexvenue.NewOrcaVenue(dexvenue.DefaultOrcaPools()),
	}, cfg.RouteTimeout(), logger)
	dexRouter.UseMetrics(m)

	w := worker.New(worker.Config{
		Router:        dexRouter,
		Chain:         chainClient,
		History:       historyStore,
		Hub:           hubInstance,
		Limiter:       ratelimit.New(cfg.RateLimitPerWindow, config.RateLimitWindow),
		SignerKey:     signerKey,
		ChainExplorer: cfg.ChainExplorer,
		Cluster:       cfg.Cluster,
		SlippageBps:   cfg.SlippageBps,
		Logger:        logger,
		Metrics:       m,
	})

	intakeSvc := intake.New(historyStore, reliableQueue, hubInstance)
	intakeSvc.UseMetrics(m)

	apiServer := httpapi.New(httpapi.Config{
		Intake:     intakeSvc,
		History:    historyStore,
		Hub:        hubInstance,
		Metrics:    m,
		Logger:     logger,
		CORSOrigin: cfg.CORSOrigin,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      apiServer,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived.
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- reliableQueue.Start(ctx, cfg.WorkerConcurrency, w.Process)
	}()

	serveDone := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Port))
		err := httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		serveDone <- err
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveDone:
		if err != nil {
			logger.Error("http server exited unexpectedly", zap.Error(err))
			cancel()
			return 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}
	cancel()

	select {
	case <-sigCh:
		logger.Warn("received second shutdown signal, forcing exit")
		return 1
	case <-workerDone:
	case <-time.After(cfg.ShutdownTimeout()):
		logger.Warn("worker pool did not drain before shutdown deadline")
	}

	logger.Info("shutdown complete")
	return 0
}

func buildHistoryStore(cfg *config.Config, logger *zap.Logger) (history.Store, func(), error) {
	if cfg.PostgresURL == "" {
		logger.Warn("POSTGRES_URL not set, using in-memory history store")
		store := history.NewMemStore()
		return store, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := history.NewPostgresStore(ctx, history.PoolConfig{
		URL:         cfg.PostgresURL,
		MaxConns:    int32(cfg.PostgresPoolMax),
		IdleTimeout: time.Duration(cfg.PostgresIdleTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, store.Close, nil
}

func buildQueue(cfg *config.Config, logger *zap.Logger) (queue.Queue, func(), error) {
	if cfg.RedisURL == "" && cfg.RedisHost == "" {
		logger.Warn("no Redis configuration found, using in-memory queue")
		q := queue.NewMemQueue(queue.DefaultRetryPolicy())
		return q, func() {}, nil
	}

	var client redis.Cmdable
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	q := queue.NewRedisQueue(client, "orders", queue.DefaultRetryPolicy(), 500)
	closeFn := func() {
		if closer, ok := client.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	return q, closeFn, nil
}
