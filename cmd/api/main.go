package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go-material-store/internal/app"
	"go-material-store/internal/events"
	"go-material-store/internal/gateway"
	"go-material-store/internal/metrics"
	"go-material-store/internal/middleware"
	"go-material-store/internal/model"
	"go-material-store/internal/service"
	"go-material-store/internal/ws"
	"go-material-store/pkg/cache"
	"go-material-store/pkg/config"
	"go-material-store/pkg/database"
	"go-material-store/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Env
	envErr := godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "material-store-api"}).Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "material-store-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if envErr != nil {
		logg.Warn(ctx, ".env file not found")
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DB, cfg.App.IsProd())
	if err != nil {
		logg.Error(ctx, "connect database", err)
		os.Exit(1)
	}
	defer database.Close(db)
	if cfg.DB.AutoMigrate {
		// development only; production runs cmd/migrate
		if err := db.AutoMigrate(model.Models()...); err != nil {
			logg.Error(ctx, "auto migrate", err)
			os.Exit(1)
		}
	}

	// 3. Session cache and webhook dedup
	var store cache.Store = cache.NewMemory()
	if cfg.Redis.Enabled() {
		redisStore, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logg.Error(ctx, "connect redis", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		logg.Warn(ctx, "redis not configured, using in-process cache")
	}

	// 4. Metrics, gateway, notifications
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricStore := metrics.New(registry)

	gw, err := gateway.NewClient(cfg.Gateway.ServerKey,
		gateway.WithBaseURL(cfg.Gateway.BaseURL),
		gateway.WithSandbox(cfg.Gateway.Sandbox),
		gateway.WithDefaultBank(cfg.Gateway.DefaultBank),
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithObserver(metricStore.ObserveGateway),
	)
	if err != nil {
		logg.Error(ctx, "payment gateway client", err)
		os.Exit(1)
	}

	wsHub := ws.NewHub(logg)
	go wsHub.Run(ctx)

	var dispatcher *service.Dispatcher
	if cfg.Kafka.Enabled() {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, 0, logg)
		producer.Start(ctx)
		defer producer.Close()
		dispatcher = service.NewDispatcher(wsHub, producer, logg)
	} else {
		dispatcher = service.NewDispatcher(wsHub, nil, logg)
	}

	// 5. Dependency Injection (Wiring Layers)
	services, err := app.NewServices(app.Deps{
		DB:       db,
		Config:   cfg,
		Logger:   logg,
		Gateway:  gw,
		Store:    store,
		Notifier: dispatcher,
		Metrics:  metricStore,
	})
	if err != nil {
		logg.Error(ctx, "build services", err)
		os.Exit(1)
	}

	// 6. Seed default privileges, roles, and admin user
	if err := services.Access.Seed(ctx, cfg.App.AdminEmail, cfg.App.AdminPassword); err != nil {
		logg.Error(ctx, "seed access control", err)
	}

	// 7. Setup Fiber
	fiberApp := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})

	// Middleware
	fiberApp.Use(requestid.New())
	fiberApp.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(cors.New())
	fiberApp.Use(middleware.RequestContext(logg))

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	services.Router(logg).Mount(fiberApp)

	// WebSocket Route: one connection per session, messages are pushed to the owning user only
	fiberApp.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}, middleware.RequireAuth(services.Issuer, services.Auth, logg))
	fiberApp.Get("/ws", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals(middleware.LocalUserID).(string)
		client := &ws.Client{Conn: c, UserID: userID}
		select {
		case wsHub.Register <- client:
		case <-ctx.Done():
			return
		}
		defer func() {
			select {
			case wsHub.Unregister <- client:
			case <-ctx.Done():
			}
		}()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := fiberApp.Listen(":" + cfg.App.Port); err != nil {
			logg.Error(ctx, "server stopped", err)
			stop()
		}
	}()

	<-ctx.Done()
	logg.Info(context.Background(), "shutting down server")
	if err := fiberApp.ShutdownWithTimeout(cfg.App.ShutdownTimeout); err != nil {
		logg.Error(context.Background(), "server forced to shutdown", err)
	}
	logg.Info(context.Background(), "server exited")
}
