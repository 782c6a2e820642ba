package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/settlement-backend/api/routes"
	"github.com/angelmondragon/settlement-backend/internal/inventory"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payments"
	"github.com/angelmondragon/settlement-backend/internal/sellers"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/gateway"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/migrate"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	gatewayClient, err := gateway.NewFromConfig(cfg.Gateway, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	currency, err := enums.ParseCurrency(cfg.Gateway.Currency)
	if err != nil {
		logg.Error(context.Background(), "invalid gateway currency", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	paymentsRepo := payments.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	sellerVerifier, err := sellers.NewVerifier(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create seller verifier", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(paymentsRepo, ledger, sellerVerifier, gatewayClient, payments.Options{
		CallbackURL:     cfg.Gateway.CallbackURL,
		DefaultCurrency: currency,
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, ledger)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	coordinator, err := settlement.NewCoordinator(settlement.Deps{
		Payments:  paymentsRepo,
		Orders:    ordersRepo,
		Inventory: ledger,
		Tx:        dbClient,
		Outbox:    outboxService,
		Gateway:   gatewayClient,
		Metrics:   settlementMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement coordinator", err)
		os.Exit(1)
	}

	webhookGuard, err := settlement.NewWebhookGuard(redisClient, cfg.Settlement.WebhookGuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			paymentsService,
			coordinator,
			ordersService,
			gatewayClient,
			webhookGuard,
			promhttp.Handler(),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	logg.Info(ctx, "api server stopped")
}
