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

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fsanano/pharmacy-storefront/internal/config"
	"fsanano/pharmacy-storefront/internal/handler"
	"fsanano/pharmacy-storefront/internal/repository"
	"fsanano/pharmacy-storefront/internal/service"
	"fsanano/pharmacy-storefront/internal/service/pharmacy"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup durable storage
	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage.Backend, err)
	}
	defer closeStorage()
	log.WithField("backend", cfg.Storage.Backend).Info("storage ready")

	// 3. Setup Logic
	client := pharmacy.NewClient(pharmacy.Config{
		APIURL:    cfg.Pharmacy.APIURL,
		Timeout:   cfg.Pharmacy.Timeout,
		RateLimit: cfg.Pharmacy.RateLimit,
	}, log)

	cart := service.NewCartStore(ctx, storage, log)
	session := service.NewSessionStore(client, storage, log)
	session.Restore(ctx)
	checkout := service.NewCheckoutService(cart, session, client, log)

	h := handler.NewHandler(client, cart, session, checkout, log)

	// 4. Setup Server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: h,
	}

	// 5. Run Server with Graceful Shutdown
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.ServerPort).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
	log.Info("server exiting")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.AppEnv != "dev" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func openStorage(ctx context.Context, cfg *config.Config) (repository.Storage, func(), error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		pg := repository.NewPostgresStorage(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil

	case config.StorageRedis:
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		return repository.NewRedisStorage(client, "storefront:"), func() { client.Close() }, nil

	case config.StorageMemory:
		return repository.NewMemoryStorage(), func() {}, nil

	default:
		fs, err := repository.NewFileStorage(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}
