package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-material-store/internal/app"
	"go-material-store/internal/events"
	"go-material-store/internal/gateway"
	"go-material-store/internal/service"
	"go-material-store/pkg/cache"
	"go-material-store/pkg/config"
	"go-material-store/pkg/database"
	"go-material-store/pkg/logger"

	"github.com/joho/godotenv"
)

// One reconciliation pass, meant to be run by cron or a Kubernetes CronJob.
func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	logg = logger.New(logger.Options{
		ServiceName: "reconcile",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg.DB, true)
	requireResource(ctx, logg, "database", err)
	defer database.Close(db)

	var store cache.Store = cache.NewMemory()
	if cfg.Redis.Enabled() {
		redisStore, err := cache.NewRedis(ctx, cfg.Redis)
		requireResource(ctx, logg, "redis", err)
		defer redisStore.Close()
		store = redisStore
	}

	gw, err := gateway.NewClient(cfg.Gateway.ServerKey,
		gateway.WithBaseURL(cfg.Gateway.BaseURL),
		gateway.WithSandbox(cfg.Gateway.Sandbox),
		gateway.WithDefaultBank(cfg.Gateway.DefaultBank),
		gateway.WithTimeout(cfg.Gateway.Timeout),
	)
	requireResource(ctx, logg, "payment gateway client", err)

	// no websocket sessions here; notifications only reach Kafka
	var dispatcher *service.Dispatcher
	if cfg.Kafka.Enabled() {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, 0, logg)
		producer.Start(ctx)
		defer producer.Close()
		dispatcher = service.NewDispatcher(nil, producer, logg)
	} else {
		dispatcher = service.NewDispatcher(nil, nil, logg)
	}

	services, err := app.NewServices(app.Deps{
		DB:       db,
		Config:   cfg,
		Logger:   logg,
		Gateway:  gw,
		Store:    store,
		Notifier: dispatcher,
	})
	requireResource(ctx, logg, "services", err)

	report, err := services.Sweeper.Sweep(ctx)
	fmt.Printf("resubmitted=%d synced=%d cancelled=%d failed=%d\n",
		report.Resubmitted, report.Synced, report.Cancelled, report.Failed)
	if err != nil {
		logg.Error(ctx, "reconciliation finished with errors", err)
		os.Exit(1)
	}
	logg.Info(ctx, "reconciliation finished")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
