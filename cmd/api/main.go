package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/antonvlasov/chatgate-backend/api/routes"
	"github.com/antonvlasov/chatgate-backend/internal/audit"
	"github.com/antonvlasov/chatgate-backend/internal/directory"
	"github.com/antonvlasov/chatgate-backend/internal/events"
	"github.com/antonvlasov/chatgate-backend/internal/governor"
	"github.com/antonvlasov/chatgate-backend/internal/invites"
	"github.com/antonvlasov/chatgate-backend/internal/ledger"
	"github.com/antonvlasov/chatgate-backend/internal/platform"
	"github.com/antonvlasov/chatgate-backend/internal/reconciler"
	"github.com/antonvlasov/chatgate-backend/pkg/config"
	"github.com/antonvlasov/chatgate-backend/pkg/db"
	"github.com/antonvlasov/chatgate-backend/pkg/instance"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
	"github.com/antonvlasov/chatgate-backend/pkg/metrics"
	"github.com/antonvlasov/chatgate-backend/pkg/migrate"
	"github.com/antonvlasov/chatgate-backend/pkg/pubsub"
	"github.com/antonvlasov/chatgate-backend/pkg/redis"
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

	governorMetrics := metrics.NewGovernorMetrics(prometheus.DefaultRegisterer)
	auditMetrics := metrics.NewAuditMetrics(prometheus.DefaultRegisterer)
	gov := governor.New(cfg.Governor, governorMetrics)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	userRepo := directory.NewUserRepository(dbClient.DB())
	roleRepo := directory.NewRoleRepository(dbClient.DB())
	channelRepo := directory.NewChannelRepository(dbClient.DB())
	tokenRepo := invites.NewRepository(dbClient.DB())

	engine, err := reconciler.NewEngine(reconciler.Params{
		Gateway:  gateway,
		Executor: gov,
		Ledger:   ledgerRepo,
		Users:    userRepo,
		Roles:    roleRepo,
		Events:   publisher,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation engine", err)
		os.Exit(1)
	}

	issuer, err := invites.NewIssuer(invites.Params{
		Gateway:  gateway,
		Executor: gov,
		Users:    userRepo,
		Roles:    roleRepo,
		Tokens:   tokenRepo,
		Events:   publisher,
		Logger:   logg,
		Config:   cfg.Invites,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invite issuer", err)
		os.Exit(1)
	}

	auditor, err := audit.NewAuditor(audit.AuditorParams{
		Gateway:  gateway,
		Executor: gov,
		Channels: channelRepo,
		Approved: userRepo,
		Ledger:   ledgerRepo,
		Events:   publisher,
		Logger:   logg,
		Metrics:  auditMetrics,
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

	if cfg.Audit.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			logg.Error(ctx, "failed to start audit scheduler", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Reconciler: engine,
			Invites:    issuer,
			Auditor:    auditor,
			AuditSched: scheduler,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}
