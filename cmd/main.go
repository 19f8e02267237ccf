package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"restaurant-system/internal/auth"
	"restaurant-system/internal/cart"
	"restaurant-system/internal/config"
	"restaurant-system/internal/database"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/server"
	"restaurant-system/internal/services/kitchen"
	"restaurant-system/internal/services/menu"
	"restaurant-system/internal/services/notification"
	"restaurant-system/internal/services/order"
	"restaurant-system/internal/services/tracking"
)

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (api, kitchen-worker, notification-subscriber, migrate)")
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		port       = flag.Int("port", 0, "HTTP port, overrides server.port")
		workerName = flag.String("worker-name", "", "Worker name (required for kitchen-worker mode)")
		orderTypes = flag.String("order-types", "", "Comma-separated order types the kitchen worker accepts")
		prefetch   = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
		"port": cfg.Server.Port,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api":
		err = runAPI(ctx, cfg, log)
	case "kitchen-worker":
		if *workerName == "" {
			log.Error("validation_failed", "worker-name is required for kitchen-worker mode", requestID, nil, nil)
			os.Exit(1)
		}
		err = runKitchenWorker(ctx, cfg, log, *workerName, *orderTypes, *prefetch)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	case "migrate":
		err = runMigrate(cfg, log)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	if err != nil && ctx.Err() == nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runAPI serves the HTTP API and feeds live status updates to WebSocket
// clients
func runAPI(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	if err := database.RunMigrations(cfg.DatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	rdb, err := newRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("redis_connected", "Connected to Redis", requestID, map[string]interface{}{
		"addr": cfg.Redis.Addr,
	})

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	publisher := messaging.NewPublisher(messaging.FromConnection(conn), log)

	menuService := menu.NewService(menu.NewPostgresRepository(db), menu.NewRedisCache(rdb, cfg.Redis.MenuTTL), log)
	orderService := order.NewService(order.NewRepository(db), cart.NewRedisStore(rdb, cfg.Redis.CartTTL), menuService, publisher, log)
	trackingService := tracking.NewService(tracking.NewPostgresRepository(db), log)

	hub := notification.NewHub(log)
	go hub.Run(ctx)

	queue, err := conn.DeclareExclusiveQueue(messaging.NotificationsExchange)
	if err != nil {
		return fmt.Errorf("failed to declare live update queue: %w", err)
	}
	feed := messaging.NewConsumer(conn, log, queue, "api-live-"+requestID, 10)
	go func() {
		if err := feed.Run(ctx, hub.Handle); err != nil && ctx.Err() == nil {
			log.Error("live_feed_stopped", "Live status feed stopped", requestID, err, nil)
		}
	}()

	router := server.NewRouter(server.Dependencies{
		Orders:         order.NewHandler(orderService, log),
		Tracking:       tracking.NewHandler(trackingService, log),
		Menu:           menu.NewHandler(menuService, log),
		Hub:            hub,
		Verifier:       auth.NewVerifier(cfg.Auth.JWTSecret),
		Health:         trackingService,
		Logger:         log,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	return server.Run(ctx, cfg.Server.Port, router, cfg.Server.ShutdownTimeout, log)
}

// runKitchenWorker accepts placed orders from the kitchen queue
func runKitchenWorker(ctx context.Context, cfg *config.Config, log *logger.Logger, workerName, rawTypes string, prefetch int) error {
	types, err := kitchen.ParseOrderTypes(rawTypes)
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	publisher := messaging.NewPublisher(messaging.FromConnection(conn), log)
	// Status changes touch neither the cart store nor the menu catalog.
	orders := order.NewService(order.NewRepository(db), nil, nil, publisher, log)

	consumer := messaging.NewConsumer(conn, log, messaging.KitchenQueue, workerName, prefetch)
	return kitchen.NewWorker(workerName, types, orders, consumer, log, os.Stdout).Run(ctx)
}

// runNotificationSubscriber prints status updates from the notifications queue
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	return notification.NewSubscriber(consumer, log, os.Stdout).Run(ctx)
}

func runMigrate(cfg *config.Config, log *logger.Logger) error {
	if err := database.RunMigrations(cfg.DatabaseURL()); err != nil {
		return err
	}
	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info("migrations_applied", fmt.Sprintf("Schema at version %d", version), "", map[string]interface{}{
		"version": version,
		"dirty":   dirty,
	})
	return nil
}

func newRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
