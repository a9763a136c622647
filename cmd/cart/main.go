package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/service"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/session"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLoggerV2("cart-service")
	defer logger.Sync()

	logging.Infof("Starting cart-service on port %d", cfg.Server.Port)

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	if cfg.Features.RunMigrations {
		if err := repository.Migrate(db, logger); err != nil {
			logger.Fatal("Failed to run migrations", logging.Fields{"error": err.Error()})
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	m := metrics.New()

	var sessions session.Store
	switch cfg.Session.Backend {
	case "memory":
		logger.Warn("Using in-memory sessions; carts are lost on restart")
		sessions = session.NewMemoryStore()
	default:
		sessions = session.NewRedisStore(redisClient, cfg.Session.TTL, logger)
	}

	productRepo := repository.NewPostgresProductRepository(db, logger)
	orderRepo := repository.NewPostgresOrderRepository(db, logger)

	var productCache repository.ProductCache
	if cfg.Features.EnableProductCache {
		productCache = repository.NewRedisProductCache(redisClient, cfg.Redis.TTL, logger)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Features.EnableCartEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	paymentClient := clients.NewHTTPPaymentGatewayClient(cfg.PaymentService, logger)
	notificationClient := clients.NewHTTPNotificationClient(cfg.NotificationService, logger)

	catalogService := service.NewCatalogService(productRepo, productCache, logger)
	pricing := service.NewPricingCalculator(catalogService, m, logger)
	cartService := service.NewCartService(sessions, catalogService, pricing, orderRepo, publisher, m)
	orderService := service.NewOrderService(sessions, catalogService, orderRepo, publisher, m)
	paymentService := service.NewPaymentService(sessions, orderService, paymentClient, notificationClient, cfg, m)

	h := handlers.NewHandlers(cartService, catalogService, orderService, paymentService, cfg)
	h.AddReadinessCheck("postgres", db.PingContext)
	h.AddReadinessCheck("sessions", sessions.Ping)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
		limiter.StartCleanup(ctx, time.Minute)
	}

	srv := server.New(h, m, limiter, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":            cfg.Server.Port,
			"session_backend": cfg.Session.Backend,
			"cart_events":     cfg.Features.EnableCartEvents,
			"product_cache":   cfg.Features.EnableProductCache,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	var consumer *events.KafkaConsumer
	if cfg.Features.EnablePaymentConsumer {
		consumer = events.NewKafkaConsumer(cfg.Kafka, orderService, logger)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("Payment event consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if consumer != nil {
		consumer.Stop()
	}
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *logging.LoggerV2) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	return db, nil
}
