package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/angelmondragon/settlement-backend/internal/cron"
	"github.com/angelmondragon/settlement-backend/internal/inventory"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/migrate"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single locked cycle and exit")
	only := flag.StringSlice("job", nil, "restrict the worker to these job names (repeatable)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(orders.NewRepository(conn), dbClient, outbox.NewService(outboxRepo, logg), ledger)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	autoComplete, err := cron.NewAutoCompleteJob(cron.AutoCompleteJobParams{
		Logger:    logg,
		Orders:    ordersService,
		Metrics:   metricsCollector,
		After:     cfg.Settlement.AutoCompleteAfter,
		BatchSize: cfg.Settlement.AutoCompleteBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-complete job", err)
		os.Exit(1)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Metrics:    metricsCollector,
		Retention:  cfg.Settlement.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(autoComplete, retention)
	if err == nil {
		registry, err = registry.Select(*only...)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to build cron registry", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Settlement.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"once":        *once,
		"jobs":        registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		switch err := service.RunOnce(ctx); {
		case errors.Is(err, cron.ErrLockHeld):
			logg.Warn(ctx, "cron lock held by another instance; nothing ran")
		case err != nil:
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
