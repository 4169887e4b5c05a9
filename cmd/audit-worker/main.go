package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/antonvlasov/chatgate-backend/internal/audit"
	"github.com/antonvlasov/chatgate-backend/internal/directory"
	"github.com/antonvlasov/chatgate-backend/internal/events"
	"github.com/antonvlasov/chatgate-backend/internal/governor"
	"github.com/antonvlasov/chatgate-backend/internal/ledger"
	"github.com/antonvlasov/chatgate-backend/internal/platform"
	"github.com/antonvlasov/chatgate-backend/pkg/config"
	"github.com/antonvlasov/chatgate-backend/pkg/db"
	"github.com/antonvlasov/chatgate-backend/pkg/instance"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
	"github.com/antonvlasov/chatgate-backend/pkg/metrics"
	"github.com/antonvlasov/chatgate-backend/pkg/migrate"
	"github.com/antonvlasov/chatgate-backend/pkg/pubsub"
	"github.com/antonvlasov/chatgate-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "audit-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "audit-worker"

	logg = logger.New(logger.Options{
		ServiceName: "audit-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
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

	publisher := events.NewPublisher(nil, logg)
	if cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher = events.NewPublisher(psClient.AccessEventsPublisher(), logg)
	}

	gateway, err := platform.NewGateway(context.Background(), cfg.Telegram, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap telegram gateway", err)
		os.Exit(1)
	}

	gov := governor.New(cfg.Governor, metrics.NewGovernorMetrics(prometheus.DefaultRegisterer))

	auditor, err := audit.NewAuditor(audit.AuditorParams{
		Gateway:  gateway,
		Executor: gov,
		Channels: directory.NewChannelRepository(dbClient.DB()),
		Approved: directory.NewUserRepository(dbClient.DB()),
		Ledger:   ledger.NewRepository(dbClient.DB()),
		Events:   publisher,
		Logger:   logg,
		Metrics:  metrics.NewAuditMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auditor", err)
		os.Exit(1)
	}

	lock, err := audit.NewRedisLock(redisClient, redisClient.LockKey("audit"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit lock", err)
		os.Exit(1)
	}

	scheduler, err := audit.NewScheduler(audit.SchedulerParams{
		Auditor: auditor,
		Lock:    lock,
		Logger:  logg,
		Config:  cfg.Audit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting audit worker")

	if err := scheduler.Start(ctx); err != nil {
		logg.Error(ctx, "failed to start audit scheduler", err)
		os.Exit(1)
	}

	<-ctx.Done()
	scheduler.Stop()

	logg.Info(ctx, "audit worker shutting down gracefully")
}
