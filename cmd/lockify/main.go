package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lockify/internal/attachments"
	"lockify/internal/auth"
	"lockify/internal/config"
	"lockify/internal/http_server/router"
	"lockify/internal/lib/jwt"
	sl "lockify/internal/lib/logger"
	"lockify/internal/lib/validator"
	"lockify/internal/lib/verification"
	mailSender "lockify/internal/mail-sender"
	"lockify/internal/rabbitmq"
	"lockify/internal/storage/memory"
	"lockify/internal/storage/mongo"
	"lockify/internal/storage/postgres"
	"lockify/internal/storage/redis"
	"lockify/internal/sweeper"
	"lockify/internal/vault"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type store interface {
	auth.UserSaver
	auth.UserProvider
	vault.EntryStore
	sweeper.AccountSweeper
	Close()
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting lockify",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("notifier", cfg.Notifier.Transport),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := setupStorage(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer st.Close()

	var lease sweeper.Lease
	if cfg.Redis.Address != "" {
		host, err := os.Hostname()
		if err != nil {
			log.Warn("hostname unavailable, using a random lease holder", sl.Err(err))
		}

		rdb, err := redis.New(ctx, cfg.Redis, host)
		if err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			os.Exit(1)
		}
		defer rdb.Close()

		lease = rdb
	}

	pub, closePub, err := setupPublisher(cfg, log)
	if err != nil {
		log.Error("failed to init notifier", sl.Err(err))
		os.Exit(1)
	}
	defer closePub()

	dispatcher := verification.NewDispatcher(log, pub, cfg.Verification.BaseURL, cfg.Notifier.Timeout)

	issuer := jwt.NewIssuer(cfg.Tokens.Secret, cfg.Tokens.AccessTokenTTL)

	authService := auth.New(log, st, st, dispatcher, issuer)
	vaultService := vault.New(log, st)

	deps := router.Deps{
		Log:       log,
		Validate:  validator.New(),
		Auth:      authService,
		Vault:     vaultService,
		Tokens:    issuer,
		RateLimit: cfg.HTTPServer.RateLimit,
	}

	if cfg.S3.Bucket != "" {
		presigner, err := attachments.New(ctx, cfg.S3)
		if err != nil {
			log.Error("failed to init attachments", sl.Err(err))
			os.Exit(1)
		}

		deps.Presigner = presigner
	}

	sw := sweeper.New(log, st, lease, cfg.Sweep.Interval, cfg.Sweep.Retention)
	sw.Start(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router.New(deps),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	sw.Stop()
	dispatcher.Close()

	log.Info("lockify stopped")
}

func setupStorage(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		repo, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}

		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}

		return repo, nil
	case config.StorageMongo:
		repo, err := mongo.New(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}

		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}

		return repo, nil
	default:
		return memory.New(), nil
	}
}

func setupPublisher(cfg *config.Config, log *slog.Logger) (verification.Publisher, func(), error) {
	switch cfg.Notifier.Transport {
	case config.TransportRabbitMQ:
		broker, err := rabbitmq.New(cfg.RabbitMQ)
		if err != nil {
			return nil, nil, err
		}

		return broker, broker.Close, nil
	case config.TransportSMTP:
		return mailSender.New(cfg.Email), func() {}, nil
	default:
		return verification.LogPublisher{Log: log}, func() {}, nil
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
