package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/timetracker/internal/application"
	"github.com/example/timetracker/internal/cache"
	"github.com/example/timetracker/internal/config"
	"github.com/example/timetracker/internal/events"
	httptransport "github.com/example/timetracker/internal/http"
	"github.com/example/timetracker/internal/metrics"
	"github.com/example/timetracker/internal/persistence/sqlite"
	"github.com/example/timetracker/internal/taskdir"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local development convenience; absence of a .env file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewPool(sqlite.PoolConfig{DSN: cfg.SQLiteDSN})
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.Error("failed to close redis client", "error", cerr)
		}
	}()

	bus, err := events.NewBus(&events.Config{
		Client:  redisClient,
		Channel: cfg.EventChannel,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to connect event bus", "error", err)
		os.Exit(1)
	}

	entryCache, err := cache.New(&cache.Config{
		Client: redisClient,
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to build cache", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewPrometheus(nil, "")

	profileRepo := sqlite.NewUserProfileRepository(pool)
	entryRepo := sqlite.NewEntryRepository(pool)
	ledgerRepo := sqlite.NewLedgerRepository(pool)

	timerService := application.NewTimerServiceWithLogger(ledgerRepo, entryRepo, bus, collector, time.Now, logger)
	entryService := application.NewEntryServiceWithLogger(entryRepo, entryCache, collector, uuid.NewString, time.Now, logger)
	identityService := application.NewIdentityService(profileRepo, uuid.NewString, logger)

	taskClient, err := taskdir.NewClient(&taskdir.ClientConfig{
		Endpoint: cfg.TasksAPIURL,
		Token:    cfg.TasksAPIToken,
		Timeout:  cfg.TasksAPITimeout,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build task directory client", "error", err)
		os.Exit(1)
	}
	directory := taskdir.NewDirectory(taskClient, entryCache, collector)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Timer:   httptransport.NewTimerHandler(timerService, logger, pool.Now),
		Entries: httptransport.NewEntryHandler(entryService, logger),
		Tasks:   httptransport.NewTaskHandler(directory, logger),
		Metrics: promhttp.Handler(),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.ResolveIdentity(identityService, logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("timer API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
