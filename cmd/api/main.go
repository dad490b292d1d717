package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/serataapp/serata-backend/api/routes"
	"github.com/serataapp/serata-backend/internal/accounts"
	"github.com/serataapp/serata-backend/internal/assignments"
	"github.com/serataapp/serata-backend/internal/campaigns"
	"github.com/serataapp/serata-backend/internal/cancellations"
	"github.com/serataapp/serata-backend/internal/checkin"
	"github.com/serataapp/serata-backend/internal/guestlists"
	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/internal/notifications"
	"github.com/serataapp/serata-backend/internal/promoters"
	"github.com/serataapp/serata-backend/internal/tables"
	"github.com/serataapp/serata-backend/pkg/auth/session"
	"github.com/serataapp/serata-backend/pkg/config"
	"github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/metrics"
	"github.com/serataapp/serata-backend/pkg/migrate"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/phone"
	"github.com/serataapp/serata-backend/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	matcher := phone.NewMatcher(cfg.Phone)
	conn := dbClient.DB()

	identityRegistry, err := identity.NewRegistry(identity.NewRepository(conn), matcher)
	if err != nil {
		fatal(logg, "failed to create identity registry", err)
	}
	identityResolver := identity.NewResolver(identity.NewRepository(conn), logg)
	grantRegistry, err := assignments.NewRegistry(assignments.NewRepository(conn), logg)
	if err != nil {
		fatal(logg, "failed to create assignment registry", err)
	}
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	promoterService, err := promoters.NewService(dbClient, promoters.NewRepository(conn), identityRegistry, matcher, logg)
	if err != nil {
		fatal(logg, "failed to create promoter service", err)
	}
	accountService, err := accounts.NewService(
		accounts.NewRepository(conn),
		sessionManager,
		redisClient,
		promoterService,
		cfg.JWT,
		cfg.Password,
		cfg.AuthRateLimit,
		logg,
	)
	if err != nil {
		fatal(logg, "failed to create account service", err)
	}
	guestListService, err := guestlists.NewService(dbClient, guestlists.NewRepository(conn), grantRegistry, identityRegistry, outboxService, logg)
	if err != nil {
		fatal(logg, "failed to create guest list service", err)
	}
	tableService, err := tables.NewService(dbClient, tables.NewRepository(conn), grantRegistry, identityRegistry, outboxService, logg)
	if err != nil {
		fatal(logg, "failed to create table service", err)
	}
	cancellationService, err := cancellations.NewService(dbClient, cancellations.NewRepository(conn), guestListService, tableService, outboxService, logg)
	if err != nil {
		fatal(logg, "failed to create cancellation service", err)
	}
	checkInService, err := checkin.NewService(dbClient, checkin.NewRepository(conn), outboxService, metrics.NewCheckInMetrics(promRegistry), logg)
	if err != nil {
		fatal(logg, "failed to create check-in service", err)
	}
	notificationService, err := notifications.NewService(notifications.NewRepository(conn), logg)
	if err != nil {
		fatal(logg, "failed to create notification service", err)
	}
	campaignService, err := campaigns.NewService(dbClient, campaigns.NewRepository(conn), outboxService, logg)
	if err != nil {
		fatal(logg, "failed to create campaign service", err)
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
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Sessions:      sessionManager,
			Accounts:      accountService,
			Identity:      identityResolver,
			Promoters:     promoterService,
			Assignments:   grantRegistry,
			GuestLists:    guestListService,
			Tables:        tableService,
			Cancellations: cancellationService,
			CheckIn:       checkInService,
			Notifications: notificationService,
			Campaigns:     campaignService,
			PromRegistry:  promRegistry,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdown
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
