package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wambuinjohi/trainerconnect/internal/collections"
	"github.com/wambuinjohi/trainerconnect/internal/cron"
	"github.com/wambuinjohi/trainerconnect/internal/disbursements"
	"github.com/wambuinjohi/trainerconnect/internal/ledger"
	"github.com/wambuinjohi/trainerconnect/internal/payouts"
	"github.com/wambuinjohi/trainerconnect/internal/reconcile"
	"github.com/wambuinjohi/trainerconnect/pkg/config"
	"github.com/wambuinjohi/trainerconnect/pkg/db"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
	"github.com/wambuinjohi/trainerconnect/pkg/metrics"
	"github.com/wambuinjohi/trainerconnect/pkg/migrate"
	"github.com/wambuinjohi/trainerconnect/pkg/mpesa"
	"github.com/wambuinjohi/trainerconnect/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "poller"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "poller"

	logg = logger.New(logger.Options{
		ServiceName: "poller",
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

	collectionsJob, err := reconcile.NewCollectionsPollJob(collectionsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create collections poll job", err)
		os.Exit(1)
	}
	disbursementsJob, err := reconcile.NewDisbursementsPollJob(disbursementsService, cfg.Reconcile.StuckAfter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create disbursements poll job", err)
		os.Exit(1)
	}
	payoutResumeJob, err := reconcile.NewPayoutResumeJob(payoutsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout resume job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("poller"), cfg.Reconcile.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create poller lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(collectionsJob, disbursementsJob, payoutResumeJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create poller service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reconciliation poller")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "poller stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "poller shutting down gracefully")
}
