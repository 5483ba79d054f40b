package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/luxora/storefront-api/internal/config"
	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/handler"
	"github.com/luxora/storefront-api/internal/imagestore"
	"github.com/luxora/storefront-api/internal/mailer"
	"github.com/luxora/storefront-api/internal/middleware"
	"github.com/luxora/storefront-api/internal/repository"
	"github.com/luxora/storefront-api/internal/service"
	"github.com/luxora/storefront-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelDebug
	if cfg.Server.IsProduction() {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Error("open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("connected to storage", "driver", store.Driver)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ is optional; without it order events are not published.
	var (
		amqpConn  *amqp.Connection
		publisher service.EventPublisher
		consumer  *worker.OrderWorker
	)
	sender, err := mailer.New(cfg.SMTP, log)
	if err != nil {
		log.Error("configure mailer", "error", err)
		os.Exit(1)
	}
	if amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL); err != nil {
		log.Warn("RabbitMQ unavailable, order notifications disabled", "error", err)
	} else {
		defer amqpConn.Close()

		pubCh, consumeCh, err := openChannels(amqpConn)
		if err != nil {
			log.Error("setup RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer pubCh.Close()
		defer consumeCh.Close()

		publisher = worker.NewPublisher(pubCh)
		consumer = worker.NewOrderWorker(consumeCh, sender, redisClient, log)
		log.Info("connected to RabbitMQ")
	}

	// Images
	images, err := imagestore.NewMinIOStore(cfg.MinIO)
	if err != nil {
		log.Error("configure MinIO", "error", err)
		os.Exit(1)
	}
	if err := images.EnsureBucket(ctx); err != nil {
		log.Error("ensure image bucket", "bucket", cfg.MinIO.Bucket, "error", err)
		os.Exit(1)
	}

	if err := dto.RegisterValidators(); err != nil {
		log.Error("register validators", "error", err)
		os.Exit(1)
	}

	// Services
	tokens := service.NewTokenIssuer(cfg.JWT)
	authSvc := service.NewAuthService(store.Users, tokens, redisClient)
	productSvc := service.NewProductService(store.Products, store.Categories, redisClient, cfg.Redis.CacheTTL)
	categorySvc := service.NewCategoryService(store.Categories)
	orderSvc := service.NewOrderService(store.Orders, store.Products, productSvc, publisher, log)
	uploadSvc := service.NewUploadService(images)

	checks := map[string]handler.DependencyCheck{
		store.Driver: store.Ping,
		"redis":      func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"minio":      images.Ping,
	}
	if amqpConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if amqpConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}

	router, err := newRouter(cfg, log, routes{
		auth:      authSvc,
		authH:     handler.NewAuthHandler(authSvc, cfg.Server.IsProduction()),
		productH:  handler.NewProductHandler(productSvc),
		categoryH: handler.NewCategoryHandler(categorySvc),
		orderH:    handler.NewOrderHandler(orderSvc),
		uploadH:   handler.NewUploadHandler(uploadSvc),
		healthH:   handler.NewHealthHandler(cfg.Server.Env, checks),
		limiter:   middleware.NewRateLimiter(redisClient, log),
	})
	if err != nil {
		log.Error("build router", "error", err)
		os.Exit(1)
	}

	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			log.Error("start order worker", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	if consumer != nil {
		consumer.Stop()
	}
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}

// openChannels opens separate publish and consume channels and declares the
// queue topology on the consumer side.
func openChannels(conn *amqp.Connection) (*amqp.Channel, *amqp.Channel, error) {
	pubCh, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open publish channel: %w", err)
	}
	consumeCh, err := conn.Channel()
	if err != nil {
		pubCh.Close()
		return nil, nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := worker.SetupRabbitMQ(consumeCh); err != nil {
		pubCh.Close()
		consumeCh.Close()
		return nil, nil, err
	}
	return pubCh, consumeCh, nil
}
