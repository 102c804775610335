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

	"orderbridge/internal/api"
	"orderbridge/internal/config"
	"orderbridge/internal/gateway"
	"orderbridge/internal/metrics"
	"orderbridge/internal/model"
	"orderbridge/internal/repository"
	"orderbridge/internal/service"
	"orderbridge/pkg/logger"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Infrastructure
	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	etcdCli, err := initEtcd(cfg.Etcd)
	if err != nil {
		return err
	}
	defer etcdCli.Close()

	db, err := initDB(cfg.MySQL)
	if err != nil {
		return err
	}

	// Repositories
	pendingRepo := repository.NewPendingRepository(db)
	deadLetterRepo := repository.NewDeadLetterRepository(db)
	mappingRepo := repository.NewStatusMappingRepository(db)

	// External API gateways
	sourceAPI := gateway.NewSourceAPI(cfg.Source.BaseURL, cfg.Source.ConsumerKey, cfg.Source.ConsumerSecret, cfg.Sync.HTTPTimeout)
	destAPI := gateway.NewDestinationAPI(cfg.Destination.BaseURL, cfg.Destination.Token, cfg.Sync.HTTPTimeout)

	// Services & Workers
	observer := metrics.NewPrometheusObserver()
	executor := service.NewExecutor(sourceAPI, destAPI, pendingRepo, observer)
	retryWorker := service.NewRetryWorker(pendingRepo, deadLetterRepo, executor, etcdCli, service.RetryWorkerConfig{
		MaxRetries: cfg.Sync.MaxRetries,
		BatchSize:  cfg.Sync.RetryBatchSize,
		Cooldown:   cfg.Sync.Cooldown,
		Interval:   cfg.Sync.RetryInterval,
	}, observer)
	statusReconciler := service.NewStatusReconciler(sourceAPI, destAPI, mappingRepo, etcdCli, cfg.Sync.StatusSyncInterval, cfg.Sync.StatusPageSize, observer)

	// Background sweeps
	go func() {
		logger.Info("starting retry worker")
		retryWorker.Run(ctx)
	}()
	go func() {
		logger.Info("starting downstream status reconciler")
		statusReconciler.RunDownstream(ctx)
	}()
	go func() {
		logger.Info("starting upstream status reconciler")
		statusReconciler.RunUpstream(ctx)
	}()

	// HTTP Server
	h := api.NewSyncHandler(executor, retryWorker, statusReconciler, pendingRepo, deadLetterRepo, db)
	r := api.RegisterRoutes(h, rdb, cfg.Auth.JWTSecret, cfg.RateLimit.RequestsPerSecond, cfg.Server.Environment)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown Signal Wait
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Signal all workers to stop
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

// -- Infrastructure Initializers --

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func initEtcd(cfg config.EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}

func initDB(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	// Simple auto-migrate for dev convenience
	// In production, you might want to use a proper migration tool like golang-migrate
	err = db.AutoMigrate(
		&model.PendingSync{},
		&model.DeadLetterSync{},
		&model.StatusMapping{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
