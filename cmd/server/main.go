/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave ledger HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), apply flag overrides
  2. Build the zap logger
  3. Open the store (sqlite3 / pgx / mongo / memory)
  4. Pick the employee locker (Redis when REDIS_ADDR is set)
  5. Pick the event publisher (Kafka when KAFKA_BROKERS is set)
  6. Start the accrual scheduler and the HTTP server

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      Database DSN (overrides DB_DSN)
  -env     Path to a .env file (default: .env)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, flush the publisher, close the store
  4. Exit

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/events"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/lock"
	"github.com/warp/leave-ledger/store"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides APP_PORT)")
	dsn := flag.String("db", "", "database DSN (overrides DB_DSN)")
	envFile := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	logger, err := newLogger(cfg.App)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close(context.Background())
	logger.Info("store ready", zap.String("driver", db.Driver))

	locker, closeLocker, err := newLocker(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	publisher := newPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	fallback := leave.FallbackToUnpaid
	if cfg.Ledger.StrictFallback {
		fallback = leave.FallbackRequired
	}
	svc := leave.NewService(db,
		leave.WithLogger(logger),
		leave.WithLocker(locker),
		leave.WithPublisher(publisher),
		leave.WithMaxRetries(cfg.Ledger.MaxRetries),
		leave.WithApprovalFallback(fallback),
		leave.WithMaxRangeDays(cfg.Ledger.MaxRangeDays),
	)

	scheduler := api.NewAccrualScheduler(svc, logger)
	scheduler.CheckInterval = cfg.Ledger.AccrualInterval
	scheduler.Start()
	defer scheduler.Stop()

	secret := cfg.JWT.Secret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using an insecure development secret")
		secret = "dev-secret"
	}
	router := api.NewRouter(api.NewHandler(svc, logger), api.NewTokenAuth(secret), api.RouterOptions{})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.App.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(app config.AppConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(app.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	if app.Env == "production" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}

// newLocker uses Redis when configured so several server replicas serialize
// ledger work per employee; otherwise an in-process lock is enough.
func newLocker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	logger.Info("using redis employee lock", zap.String("addr", cfg.Addr))
	return lock.NewRedis(client, lock.WithLockLogger(logger)), func() { client.Close() }, nil
}

func newPublisher(cfg config.KafkaConfig, logger *zap.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return events.NewLog(logger)
	}
	logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return events.NewKafka(cfg.Brokers, cfg.Topic)
}
