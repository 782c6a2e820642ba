package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/migrate"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/registry"
	"github.com/angelmondragon/settlement-backend/pkg/pubsub"
)

func main() {
	drainOnly := flag.Bool("drain", false, "publish until the outbox is empty, then exit")
	listDLQ := flag.Int("dead-letters", 0, "print the N most recent dead-lettered events as JSON lines, then exit")
	requeue := flag.StringSlice("requeue", nil, "move dead-lettered event ids back into the outbox, then exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if *listDLQ > 0 || len(*requeue) > 0 {
		if err := manageDeadLetters(ctx, dlqRepo, *listDLQ, *requeue); err != nil {
			logg.Error(ctx, "dead-letter command failed", err)
			os.Exit(1)
		}
		return
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Outbox:        cfg.Outbox,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox publisher", err)
		os.Exit(1)
	}

	if *drainOnly {
		if err := service.Drain(ctx); err != nil {
			logg.Error(ctx, "outbox drain failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "outbox drained")
		return
	}

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func manageDeadLetters(ctx context.Context, repo *outbox.DLQRepository, list int, requeue []string) error {
	for _, raw := range requeue {
		id, err := uuid.Parse(raw)
		if err != nil {
			return err
		}
		if err := repo.Requeue(ctx, id); err != nil {
			return err
		}
	}
	if list <= 0 {
		return nil
	}
	rows, err := repo.List(ctx, list)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
