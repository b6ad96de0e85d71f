package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/wambuinjohi/trainerconnect/api/routes"
	"github.com/wambuinjohi/trainerconnect/internal/collections"
	"github.com/wambuinjohi/trainerconnect/internal/disbursements"
	"github.com/wambuinjohi/trainerconnect/internal/disputes"
	"github.com/wambuinjohi/trainerconnect/internal/ledger"
	"github.com/wambuinjohi/trainerconnect/internal/payouts"
	"github.com/wambuinjohi/trainerconnect/internal/reconcile"
	"github.com/wambuinjohi/trainerconnect/pkg/config"
	"github.com/wambuinjohi/trainerconnect/pkg/db"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
	"github.com/wambuinjohi/trainerconnect/pkg/migrate"
	"github.com/wambuinjohi/trainerconnect/pkg/mpesa"
	"github.com/wambuinjohi/trainerconnect/pkg/redis"
)

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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
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

	mpesaClient, err := mpesa.NewClient(context.Background(), cfg.Mpesa, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap mpesa client", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(dbClient, ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	collectionsService, err := collections.NewService(collections.ServiceParams{
		Repo:        collections.NewRepository(dbClient.DB()),
		Provider:    mpesaClient,
		Ledger:      ledgerService,
		Payments:    cfg.Payments,
		MaxAttempts: cfg.Reconcile.MaxAttempts,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create collections service", err)
		os.Exit(1)
	}

	disbursementsService, err := disbursements.NewService(disbursements.ServiceParams{
		Tx:          dbClient,
		Repo:        disbursements.NewRepository(dbClient.DB()),
		Provider:    mpesaClient,
		Ledger:      ledgerService,
		Payments:    cfg.Payments,
		MaxAttempts: cfg.Reconcile.MaxAttempts,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create disbursements service", err)
		os.Exit(1)
	}

	payoutsService, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), disbursementsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	disputesService, err := disputes.NewService(disputes.NewRepository(dbClient.DB()), disbursementsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create disputes service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Collections:   collectionsService,
		Disbursements: disbursementsService,
		Hooks:         []reconcile.SettledHook{disputesService},
		Dedupe:        redisClient,
		CallbackTTL:   cfg.Reconcile.CallbackTTL,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Ledger:        ledgerService,
			Collections:   collectionsService,
			Disbursements: disbursementsService,
			Payouts:       payoutsService,
			Disputes:      disputesService,
			Reconcile:     reconcileService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
