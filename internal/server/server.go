// Package server assembles the services and HTTP routes of the bookstore API.
package server

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookstore/internal/handlers"
	"bookstore/internal/middleware"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
)

// Options tunes the services built by NewServices.
type Options struct {
	JWTSecret      string
	TokenTTL       time.Duration
	UnknownProduct services.ResolvePolicy
}

// Services holds every service the HTTP layer talks to.
type Services struct {
	Auth       *services.AuthService
	Products   *services.ProductService
	Categories *services.CategoryService
	Orders     *services.OrderService
	Pricing    *services.PricingEngine
}

// NewServices builds the GORM repositories on db and the services on top of
// them. publisher may be nil to disable order events.
func NewServices(db *gorm.DB, tokens repositories.TokenStore, publisher services.EventPublisher, opts Options, log *zap.Logger) *Services {
	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	pricing := services.NewPricingEngine(productRepo, orderRepo, opts.UnknownProduct)
	return &Services{
		Auth:       services.NewAuthService(userRepo, tokens, opts.JWTSecret, opts.TokenTTL, log),
		Products:   services.NewProductService(productRepo, categoryRepo, log),
		Categories: services.NewCategoryService(categoryRepo, log),
		Orders:     services.NewOrderService(orderRepo, pricing, publisher, log),
		Pricing:    pricing,
	}
}

// Config controls the Fiber application.
type Config struct {
	// RequestLog enables the per-request access log.
	RequestLog bool
	// EventsEnabled is reported by the health endpoint.
	EventsEnabled bool
}

// New builds the Fiber application with every route under /api/v1.
func New(svc *Services, cfg Config, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "bookstore",
		ErrorHandler: errorHandler(log),
	})

	app.Use(recover.New())
	if cfg.RequestLog {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"events": cfg.EventsEnabled,
		})
	})

	authRequired := middleware.AuthRequired(svc.Auth, log)

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(svc.Auth, log).RegisterRoutes(apiV1, authRequired)
	handlers.NewProductHandler(svc.Products, log).RegisterRoutes(apiV1, authRequired)
	handlers.NewCategoryHandler(svc.Categories, log).RegisterRoutes(apiV1, authRequired)
	handlers.NewOrderHandler(svc.Orders, log).RegisterRoutes(apiV1, authRequired)

	return app
}

// errorHandler reports errors that escaped the handlers, such as unknown
// routes or panics caught by the recover middleware.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			code = ferr.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
			return c.Status(code).JSON(fiber.Map{"message": "Internal server error"})
		}
		return c.Status(code).JSON(fiber.Map{"message": err.Error()})
	}
}
