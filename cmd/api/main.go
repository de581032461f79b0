package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmstandhq/farmstand-backend/api/controllers"
	"github.com/farmstandhq/farmstand-backend/api/routes"
	checkoutsvc "github.com/farmstandhq/farmstand-backend/internal/checkout"
	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/internal/payments"
	"github.com/farmstandhq/farmstand-backend/internal/sellers"
	"github.com/farmstandhq/farmstand-backend/internal/sweeper"
	"github.com/farmstandhq/farmstand-backend/internal/terminal"
	"github.com/farmstandhq/farmstand-backend/internal/webhooks"
	"github.com/farmstandhq/farmstand-backend/pkg/config"
	"github.com/farmstandhq/farmstand-backend/pkg/db"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
	"github.com/farmstandhq/farmstand-backend/pkg/metrics"
	"github.com/farmstandhq/farmstand-backend/pkg/migrate"
	"github.com/farmstandhq/farmstand-backend/pkg/redis"
	pkgsquare "github.com/farmstandhq/farmstand-backend/pkg/square"
	pkgstripe "github.com/farmstandhq/farmstand-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe client", err)
	squareClient, err := pkgsquare.NewClient(ctx, cfg.Square, logg)
	requireResource(ctx, logg, "square client", err)

	sellersSvc, err := sellers.NewService(sellers.ServiceParams{
		Repo:   sellers.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	requireResource(ctx, logg, "sellers service", err)

	providerFactory, err := payments.NewFactory(stripeClient, squareClient)
	requireResource(ctx, logg, "payment provider factory", err)

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:          ordersRepo,
		Sellers:       sellersSvc,
		Providers:     providerFactory,
		ConfirmOnRead: cfg.ConfirmOnRead,
		Logger:        logg,
	})
	requireResource(ctx, logg, "orders service", err)

	reservation, err := checkoutsvc.NewReservationEngine(dbClient)
	requireResource(ctx, logg, "reservation engine", err)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Repo:        ordersRepo,
		Reservation: reservation,
		Confirmer:   ordersSvc,
		Sellers:     sellersSvc,
		Providers:   providerFactory,
		Site:        cfg.Site,
		Logger:      logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	terminalService, err := terminal.NewService(terminal.ServiceParams{
		Repo:      ordersRepo,
		Confirmer: ordersSvc,
		Sellers:   sellersSvc,
		Client:    squareClient,
		Logger:    logg,
	})
	requireResource(ctx, logg, "terminal service", err)

	dispatcher, err := webhooks.NewDispatcher(cfg.Webhooks.QueueSize, cfg.Webhooks.Workers, logg)
	requireResource(ctx, logg, "webhook dispatcher", err)
	defer dispatcher.Stop()

	correlator, err := webhooks.NewCorrelator(webhooks.CorrelatorParams{
		Repo:    ordersRepo,
		Sellers: sellersSvc,
		Square:  squareClient,
		Logger:  logg,
	})
	requireResource(ctx, logg, "webhook correlator", err)

	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		StripeParser: webhooks.NewStripeParser(stripeClient.SigningSecret()),
		SquareParser: webhooks.NewSquareParser(squareClient.SigningSecret(), cfg.Site.WebhookNotificationURL("square")),
		Ledger:       webhooks.NewLedger(dbClient.DB()),
		Correlator:   correlator,
		Confirmer:    ordersSvc,
		Dispatcher:   dispatcher,
		Metrics:      metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	requireResource(ctx, logg, "webhook service", err)

	sweeperService, err := sweeper.NewService(sweeper.ServiceParams{
		DB:        dbClient,
		Repo:      ordersRepo,
		Releaser:  checkoutsvc.NewStockReleaser(),
		BatchSize: cfg.Sweeper.BatchSize,
		Logger:    logg,
	})
	requireResource(ctx, logg, "sweeper service", err)

	router := routes.NewRouter(routes.RouterParams{
		Config: cfg,
		Logger: logg,
		Health: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Checkout: checkoutService,
		Orders:   ordersSvc,
		Terminal: terminalService,
		Webhooks: webhookService,
		Sweeper:  sweeperService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
		}
	}

	logg.Info(runCtx, "api server shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
