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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deweiiss/sportMe-sub000/internal/api"
	"github.com/deweiiss/sportMe-sub000/internal/auth"
	"github.com/deweiiss/sportMe-sub000/internal/cache"
	"github.com/deweiiss/sportMe-sub000/internal/config"
	"github.com/deweiiss/sportMe-sub000/internal/logging"
	"github.com/deweiiss/sportMe-sub000/internal/outbox"
	"github.com/deweiiss/sportMe-sub000/internal/persistence/memory"
	"github.com/deweiiss/sportMe-sub000/internal/persistence/postgres"
	"github.com/deweiiss/sportMe-sub000/internal/service"
	httptransport "github.com/deweiiss/sportMe-sub000/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.New("plan-matching-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithSessionPaging(cfg.SessionPageSize, cfg.MaxSessionsPerPass),
		service.WithGraceDays(cfg.MissedGraceDays),
	}
	if cfg.CacheInvalidationURL != "" {
		opts = append(opts, service.WithInvalidator(cache.NewHTTPInvalidator(cfg.CacheInvalidationURL, cfg.CacheInvalidationToken, cfg.HTTPTimeout)))
	}

	var (
		svc        *service.Service
		dispatcher *outbox.Dispatcher
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		repo := postgres.NewRepository(pool)
		svc = service.New(repo, repo, repo, repo, opts...)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, outbox.WithLogger(logger))
		go dispatcher.Start(ctx)
	} else {
		logger.Warn("POSTGRES_URL not set; using in-memory store")
		store := memory.NewStore()
		svc = service.New(store, store, store, store, opts...)
	}

	handler := api.NewHandler(svc)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux,
		httptransport.RequestLogger(logger),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("plan-matching api listening", slog.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
