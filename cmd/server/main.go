package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/api"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	storehttp "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/orders"
	"github.com/fjod/storefront/internal/payments"
	"github.com/fjod/storefront/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	mongoDB, err := store.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName, store.MongoOptions{
		ConnectTimeout: cfg.MongoConnectTimeout,
		MaxPoolSize:    cfg.MongoMaxPoolSize,
	})
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	logger.Info("Connected to MongoDB", zap.String("uri", cfg.MongoURI))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	logger.Info("Redis ping succeeded")

	cartCache := cache.NewRedisCache(redisClient, logger)
	cartStore := store.NewMongoCartStore(mongoDB)
	provider := identity.NewRedisProvider(redisClient)

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.APIKey, logger)
	charges := payments.NewHTTPChargeService(apiClient, cfg.ChargeBaseURL, cfg.ChargeSecretKey)

	aggregator := orders.NewAggregator(logger,
		store.NewTopLevelOrders(mongoDB),
		store.NewUserScopedOrders(mongoDB),
		apiClient,
	)

	hub := storehttp.NewSessionHub(provider, cartCache, cartStore, charges, apiClient, cfg.ShippingFee, logger)

	router := storehttp.NewRouter(
		storehttp.NewCartHandler(hub),
		storehttp.NewOrdersHandler(aggregator, provider, logger),
		storehttp.NewCheckoutHandler(hub),
		storehttp.NewAuthHandler(provider, hub),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Storefront listening", zap.Int("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown failed", zap.Error(err))
	}
	// Queued remote mirrors must land before the store connection goes away.
	hub.Close()
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		logger.Warn("MongoDB disconnect failed", zap.Error(err))
	}
	logger.Info("Storefront stopped")
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Env == "dev" {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
		return zcfg.Build()
	}
	return zap.NewProduction()
}
