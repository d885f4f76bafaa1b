package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"bookstore/internal/config"
	"bookstore/internal/database"
	"bookstore/internal/repositories"
	"bookstore/internal/server"
	"bookstore/internal/services"
	"bookstore/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server gracefully stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// --- Database ---
	gormLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		gormLevel = gormlogger.Info
	}
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN, gormLevel)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// --- Token store ---
	var tokens repositories.TokenStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "connect to Redis")
		}
		tokens = repositories.NewRedisTokenStore(rdb)
		logger.Info("using Redis token store", zap.String("addr", cfg.RedisAddr))
	} else {
		store := repositories.NewGORMTokenStore(db)
		purged, err := store.PurgeExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info("using database token store", zap.Int64("expired_tokens_purged", purged))
		tokens = store
	}

	// --- Order events ---
	// The publisher must stay an untyped nil when RabbitMQ is disabled.
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: services.OrderExchange,
		}, logger)
		if err != nil {
			return err
		}
		defer mqClient.Close()
		if err := mqClient.ConsumeOrderEvents(newOrderEventHandler(logger)); err != nil {
			return err
		}
		publisher = mqClient
	}

	policy, err := services.ParseResolvePolicy(cfg.UnknownProductPolicy)
	if err != nil {
		return err
	}
	svc := server.NewServices(db, tokens, publisher, server.Options{
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		UnknownProduct: policy,
	}, logger)

	if cfg.AdminUsername != "" {
		if err := svc.Auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return err
		}
	}
	if cfg.SeedData {
		if err := seedCatalog(ctx, svc, logger); err != nil {
			return err
		}
	}

	app := server.New(svc, server.Config{
		RequestLog:    !cfg.IsProduction(),
		EventsEnabled: publisher != nil,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", cfg.AppPort),
			zap.String("unknown_products", string(policy)))
		if err := app.Listen(cfg.AppPort); err != nil {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "parse LOG_LEVEL %q", cfg.LogLevel)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// newOrderEventHandler returns the consumer callback for order events.
// Undecodable messages are rejected.
func newOrderEventHandler(logger *zap.Logger) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		var event services.OrderEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return errors.Wrapf(err, "decode order event %d", msg.DeliveryTag)
		}
		if event.OrderID == "" {
			return errors.Errorf("order event %d has no order id", msg.DeliveryTag)
		}
		logger.Info("order event received",
			zap.String("type", event.Type),
			zap.String("routing_key", msg.RoutingKey),
			zap.String("order_id", event.OrderID),
			zap.String("owner", event.Owner),
			zap.Strings("product_ids", event.ProductIDs),
			zap.String("total", event.Total.String()))
		return nil
	}
}

type seedProduct struct {
	title       string
	description string
	price       string
	category    string
}

var seedCategories = []services.CategoryInput{
	{Name: "Fiction", Description: "Novels and short stories"},
	{Name: "Science", Description: "Popular science and textbooks"},
	{Name: "Programming", Description: "Software development"},
}

var seedProducts = []seedProduct{
	{"The Go Programming Language", "Donovan and Kernighan", "39.99", "Programming"},
	{"Designing Data-Intensive Applications", "Kleppmann", "45.50", "Programming"},
	{"A Brief History of Time", "Hawking", "18.00", "Science"},
	{"Dune", "Herbert", "12.99", "Fiction"},
}

// seedCatalog fills an empty catalog with sample categories and products.
func seedCatalog(ctx context.Context, svc *server.Services, logger *zap.Logger) error {
	existing, err := svc.Products.ListProducts(ctx, repositories.ProductFilter{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("catalog already populated, skipping seed")
		return nil
	}

	categoryIDs := make(map[string]string, len(seedCategories))
	for _, in := range seedCategories {
		category, err := svc.Categories.CreateCategory(ctx, in)
		if err != nil {
			return errors.Wrapf(err, "seed category %s", in.Name)
		}
		categoryIDs[category.Name] = category.ID
	}

	for _, p := range seedProducts {
		product, err := svc.Products.CreateProduct(ctx, services.ProductInput{
			Title:       p.title,
			Description: p.description,
			Price:       decimal.RequireFromString(p.price),
			CategoryIDs: []string{categoryIDs[p.category]},
		})
		if err != nil {
			return errors.Wrapf(err, "seed product %s", p.title)
		}
		logger.Debug("seeded product", zap.String("title", product.Title), zap.String("id", product.ID))
	}
	logger.Info("catalog seeded",
		zap.Int("categories", len(seedCategories)),
		zap.Int("products", len(seedProducts)))
	return nil
}
