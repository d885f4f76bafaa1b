package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bookstore/internal/services"
	"bookstore/internal/validation"
)

// CategoryHandler handles HTTP requests for categories.
type CategoryHandler struct {
	service  *services.CategoryService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(service *services.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		service:  service,
		validate: validation.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the category routes.
func (h *CategoryHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	categoryRoutes := router.Group("/categories")
	categoryRoutes.Get("/", h.HandleGetCategories)
	categoryRoutes.Get("/:id", h.HandleGetCategoryByID)
	categoryRoutes.Post("/", authRequired, h.HandleCreateCategory)
	categoryRoutes.Put("/:id", authRequired, h.HandleUpdateCategory)
	categoryRoutes.Delete("/:id", authRequired, h.HandleDeleteCategory)
}

func (h *CategoryHandler) HandleGetCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext(), c.Query("name"))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve categories")
	}
	return c.JSON(categories)
}

func (h *CategoryHandler) HandleGetCategoryByID(c *fiber.Ctx) error {
	category, err := h.service.GetCategoryByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve category")
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleCreateCategory(c *fiber.Ctx) error {
	var in services.CategoryInput
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}

	category, err := h.service.CreateCategory(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err, "Could not create category")
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *CategoryHandler) HandleUpdateCategory(c *fiber.Ctx) error {
	var in services.CategoryInput
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}

	category, err := h.service.UpdateCategory(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, h.logger, err, "Could not update category")
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleDeleteCategory(c *fiber.Ctx) error {
	if err := h.service.DeleteCategory(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, err, "Could not delete category")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
