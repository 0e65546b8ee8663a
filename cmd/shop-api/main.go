package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/shop-api/internal/cart/cache"
	cartrepo "github.com/fjod/go_cart/shop-api/internal/cart/repository"
	"github.com/fjod/go_cart/shop-api/internal/cart/service"
	"github.com/fjod/go_cart/shop-api/internal/config"
	"github.com/fjod/go_cart/shop-api/internal/events"
	h "github.com/fjod/go_cart/shop-api/internal/http"
	"github.com/fjod/go_cart/shop-api/internal/logger"
	"github.com/fjod/go_cart/shop-api/internal/metrics"
	orderrepo "github.com/fjod/go_cart/shop-api/internal/order/repository"
	"github.com/fjod/go_cart/shop-api/internal/payment"
	"github.com/fjod/go_cart/shop-api/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Options{Service: "shop-api", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx := context.Background()

	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()
	log.Info().Str("db", cfg.MongoDBName).Msg("connected to MongoDB")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}

	creds := &orderrepo.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	orders, err := orderrepo.NewRepository(creds)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	defer orders.Close()
	if err := orders.RunMigrations(creds); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	var publisher events.Publisher = events.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events to kafka")
	}
	defer publisher.Close()

	carts := service.NewCartService(
		cartrepo.NewMongoRepository(mongoDB),
		cache.NewRedisCache(redisClient, cfg.CartCacheTTL),
		log,
	)
	guard := session.NewGuard([]byte(cfg.SessionSecret), cfg.SessionIssuer, session.NewRedisRevocations(redisClient))
	processor := payment.NewWebhookProcessor(
		payment.Config{Secret: []byte(cfg.StripeWebhookSecret), Tolerance: cfg.WebhookTolerance},
		payment.NewRedisClaims(redisClient, cfg.WebhookEventTTL),
		orders,
		carts,
		publisher,
		log.With().Str("component", "webhook").Logger(),
	)

	router := h.NewRouter(h.Deps{
		Config:   cfg,
		Log:      log,
		Metrics:  metrics.New(),
		Carts:    carts,
		Orders:   orders,
		Sessions: guard,
		Webhooks: processor,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("shop-api starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
