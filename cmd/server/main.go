package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/config"
	"github.com/hongminglow/kinder-admin/internal/http/handlers"
	"github.com/hongminglow/kinder-admin/internal/logger"
	"github.com/hongminglow/kinder-admin/internal/notify"
	"github.com/hongminglow/kinder-admin/internal/permission"
	"github.com/hongminglow/kinder-admin/internal/server"
	"github.com/hongminglow/kinder-admin/internal/session"
	"github.com/hongminglow/kinder-admin/internal/storage/postgres"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx := context.Background()

	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := permission.NewRegistry(store, zl)
	if _, err := registry.ReconcileRoles(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	sessions := session.NewRedisStore(rdb, "session", cfg.SessionTTL, cfg.RememberTTL)

	var notifier notify.Notifier = notify.NewLogNotifier(zl)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		kafka := notify.NewKafkaNotifier(producer, cfg.MailTopic, zl)
		defer kafka.Close()
		notifier = kafka
	}

	authMetrics, err := auth.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.SecretKey, "kinder-admin", cfg.ConfirmTokenTTL)
	svc := auth.NewService(store, store, sessions, tokens, notifier, auth.Options{
		AdminEmail: cfg.AdminEmail,
		ConfirmURL: cfg.ConfirmURL(),
		Logger:     zl,
		Metrics:    authMetrics,
	})

	srv, err := server.New(cfg, server.Deps{
		Store:    store,
		Auth:     svc,
		Registry: registry,
		Checks: map[string]handlers.Pinger{
			"database": store,
			"redis":    handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
		Logger: zl,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("kinder-admin listening", zap.String("addr", cfg.HTTPAddress()), zap.String("env", cfg.Env))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zl.Warn("graceful shutdown error", zap.Error(err))
	}
	return nil
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
