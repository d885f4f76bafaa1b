package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/repositories"
	"bookstore/internal/services"
	"bookstore/internal/validation"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validation.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the product routes. Reads are public, writes
// require authentication.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/featured", h.HandleGetFeaturedProducts)
	productRoutes.Get("/search", h.HandleSearchProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", authRequired, h.HandleCreateProduct)
	productRoutes.Put("/:id", authRequired, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", authRequired, h.HandleDeleteProduct)
}

// HandleGetProducts lists products, optionally filtered by title, category
// and price range.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	filter := repositories.ProductFilter{
		Title:      c.Query("title"),
		CategoryID: c.Query("category"),
	}

	invalid := make(map[string]string)
	for param, dst := range map[string]**decimal.Decimal{
		"min_price": &filter.MinPrice,
		"max_price": &filter.MaxPrice,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			invalid[param] = "must be a decimal number"
			continue
		}
		*dst = &d
	}
	if len(invalid) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  invalid,
		})
	}

	products, err := h.service.ListProducts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve products")
	}
	return c.JSON(products)
}

// HandleGetFeaturedProducts returns the most expensive products.
func (h *ProductHandler) HandleGetFeaturedProducts(c *fiber.Ctx) error {
	products, err := h.service.FeaturedProducts(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve featured products")
	}
	return c.JSON(products)
}

// HandleSearchProducts matches ?q against title and description.
func (h *ProductHandler) HandleSearchProducts(c *fiber.Ctx) error {
	products, err := h.service.SearchProducts(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondError(c, h.logger, err, "Could not search products")
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve product")
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var in services.ProductInput
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}

	product, err := h.service.CreateProduct(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err, "Could not create product")
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces an existing product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var in services.ProductInput
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}

	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, h.logger, err, "Could not update product")
	}
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, err, "Could not delete product")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
