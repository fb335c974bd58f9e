package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/config/logger"
	postgresql "github.com/crabzie/RabbitMQ-Task-Pipeline/config/storage/postgresql"
	redisConfig "github.com/crabzie/RabbitMQ-Task-Pipeline/config/storage/redis"
	config "github.com/crabzie/RabbitMQ-Task-Pipeline/config/utils"
	httpAdapter "github.com/crabzie/RabbitMQ-Task-Pipeline/internal/adapter/http"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/adapter/queue/rabbitmq"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/adapter/storage/postgres"
	redisAdapter "github.com/crabzie/RabbitMQ-Task-Pipeline/internal/adapter/storage/redis"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/service"
)

const (
	_shutdownPeriod   = 10 * time.Second
	_brokerMaxRetries = 10
)

func main() {
	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	// Config & logger
	appConfig := config.New()
	log := logger.Build(appConfig.Logger)
	log.Info("Starting the application",
		zap.String("app", appConfig.App.Name),
		zap.String("env", appConfig.App.Env))

	// Postgres
	dbService, err := postgresql.New(rootCtx, appConfig.DB, log.Named("DB"))
	if err != nil {
		log.Fatal("Failed to init Postgres", zap.Error(err))
	}
	defer dbService.Close()

	if err := dbService.Migrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Successfully migrated the database")

	// Redis cache
	cacheService, err := redisConfig.New(rootCtx, appConfig.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	log.Info("Successfully connected to the cache server", zap.String("address", appConfig.Redis.Addr))

	// RabbitMQ, retried here because the spec of Start is a single attempt
	broker := rabbitmq.NewBroker(appConfig.Broker, log.Named("Broker"))
	for attempt := 1; ; attempt++ {
		if err := broker.Start(rootCtx); err == nil {
			break
		} else if attempt == _brokerMaxRetries {
			log.Fatal("Failed to connect to RabbitMQ", zap.Int("attempts", attempt), zap.Error(err))
		} else {
			log.Warn("Failed to connect to RabbitMQ, retrying...",
				zap.Int("attempt", attempt),
				zap.Error(err))
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}
	defer broker.Close()

	// Explicit dependency construction, no service locator: each component
	// is built once here and handed to its consumers.
	uow := postgres.NewUnitOfWork(dbService, log.Named("UoW"))
	cache := redisAdapter.NewTaskCache(cacheService.Client, log.Named("Cache"))
	mediator := service.BuildMediator(broker, uow, cache, log.Named("Mediator"))

	coordinator := service.NewCoordinator(
		broker,
		uow,
		cache,
		appConfig.Coordinator.Workers,
		appConfig.Coordinator.QueueSize,
		log.Named("Coordinator"),
	)
	if err := coordinator.Start(rootCtx); err != nil {
		log.Fatal("Failed to start coordinator", zap.Error(err))
	}

	// HTTP API
	handler := httpAdapter.NewHandler(mediator, log.Named("HTTP"))
	server := &http.Server{
		Addr:    appConfig.HTTP.Addr,
		Handler: httpAdapter.NewRouter(handler),
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", appConfig.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			rootCtxCancel()
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), _shutdownPeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	// Drain in-flight executions before releasing the broker and the pool.
	coordinator.Stop()

	log.Info("Graceful shutdown complete.")
	_ = os.Stdout.Sync()
}
