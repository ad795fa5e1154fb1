package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokenauth/backend/internal/config"
	domain "tokenauth/backend/internal/domain/auth"
	"tokenauth/backend/internal/httpserver"
	"tokenauth/backend/internal/infrastructure/memory"
	"tokenauth/backend/internal/infrastructure/postgres"
	"tokenauth/backend/internal/infrastructure/redisstore"
	"tokenauth/backend/internal/infrastructure/token"
	"tokenauth/backend/internal/logging"
	"tokenauth/backend/internal/metrics"
	authusecase "tokenauth/backend/internal/usecase/auth"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	rootCtx := context.Background()
	credentials, closeStore, err := openCredentialStore(rootCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open credential store")
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	opts := []authusecase.Option{
		authusecase.WithDefaultTTL(cfg.JWTExpiry),
		authusecase.WithDummyCost(cfg.BcryptCost),
		authusecase.WithRecorder(collector),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(rootCtx).Err(); err != nil {
			logger.WithError(err).Warn("redis not reachable at startup; lockout checks will fail until it recovers")
		}
		opts = append(opts, authusecase.WithAttemptTracker(
			redisstore.NewAttemptTracker(client, cfg.LoginMaxFailures, cfg.LoginLockout),
		))
		logger.WithField("redis_addr", cfg.RedisAddr).Info("failed-login lockout enabled")
	}

	tokenManager := token.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
	authService := authusecase.NewService(credentials, tokenManager, logger, opts...)

	server := httpserver.NewServer(cfg, httpserver.Deps{
		AuthService: authService,
		Logger:      logger,
		Metrics:     collector,
		Gatherer:    registry,
	})
	logger.WithField("addr", server.Addr()).Info("HTTP server listening")

	go func() {
		if err := server.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				logger.Info("HTTP server closed")
				return
			}
			logger.WithError(err).Fatal("server error")
		}
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	} else {
		logger.Info("graceful shutdown completed")
	}
}

func openCredentialStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (domain.CredentialRepository, func(), error) {
	if cfg.CredentialStore != config.StorePostgres {
		repo, err := memory.NewCredentialRepository(memory.DefaultRecords())
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("records", repo.Len()).Info("using in-memory credential store")
		return repo, func() {}, nil
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if cfg.SeedCredentials {
		inserted, err := postgres.SeedCredentials(ctx, db.Pool, memory.DefaultRecords())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.WithField("inserted", inserted).Info("seeded credential table")
	}
	logger.Info("using postgres credential store")
	return postgres.NewCredentialRepository(db.Pool), db.Close, nil
}
