package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/domain/rates"
	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/infrastructure/cache"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/mongodb"
	"github.com/example/storefront/internal/infrastructure/payment"
	"github.com/example/storefront/internal/infrastructure/postgres"
	"github.com/example/storefront/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[API] config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Development:       cfg.IsDevelopment(),
		Level:             cfg.Logger.Level,
		Encoding:          cfg.Logger.Encoding,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[API] logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("[API] exiting", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("[API] ========================================")
	log.Info("[API] Storefront cart & checkout")
	log.Info("[API] ========================================")
	log.Info("[API] configuration", zap.Stringer("config", cfg))

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	if err != nil {
		return err
	}

	// Carts, catalog and rate tables
	mongoDB, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("[API] mongo disconnect", zap.Error(err))
		}
	}()
	if err := mongodb.EnsureIndexes(ctx, mongoDB); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	if cfg.Server.SeedDefaults {
		if err := mongodb.Seed(ctx, mongoDB); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("[API] seeded default catalog and rate tables")
	}
	log.Info("[API] Connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// Checkout records
	db, err := postgres.Connect(ctx, cfg.Postgres.URL, postgres.PoolConfig{
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Postgres.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	version, err := postgres.Migrate(db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("[API] Connected to PostgreSQL", zap.Uint("schema_version", version))

	redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	log.Info("[API] Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	var publisher events.Publisher = events.Discard{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.Info("[API] Kafka producer ready", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	payments, err := payment.NewClient(cfg.Payment.URL, cfg.Payment.Timeout, log)
	if err != nil {
		return fmt.Errorf("payment client: %w", err)
	}

	productRepo := mongodb.NewProductRepository(mongoDB)
	ratesSvc := rates.NewService(mongodb.NewRatesRepository(mongoDB), log)
	productSvc := product.NewService(productRepo)
	cartSvc := cart.NewService(
		mongodb.NewCartRepository(mongoDB),
		productRepo,
		cache.NewRedisCartCache(redisClient, cfg.Redis.TTL),
		publisher,
		log,
	)
	checkoutSvc := checkout.NewService(
		postgres.NewCheckoutRepository(db),
		productRepo,
		ratesSvc,
		payments,
		cartSvc,
		publisher,
		log,
	)

	handlers := api.NewHandlers(cartSvc, checkoutSvc, ratesSvc, productSvc, log).
		WithHealthCheck("mongodb", func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) }).
		WithHealthCheck("postgres", db.PingContext).
		WithHealthCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(handlers, jwtService, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("[API] Server started", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("[API] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
