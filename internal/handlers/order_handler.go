package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bookstore/internal/middleware"
	"bookstore/internal/services"
	"bookstore/internal/validation"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validation.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the order routes. Every route requires authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	orderRoutes := router.Group("/orders", authRequired)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/mine", h.HandleGetMyOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Put("/:id", h.HandleUpdateOrder)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
}

// HandleGetOrders lists the orders visible to the caller.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), middleware.Principal(c))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetMyOrders lists the caller's own orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.MyOrders(c.UserContext(), middleware.Principal(c))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order visible to the caller.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve order")
	}
	return c.JSON(order)
}

// HandleCreateOrder creates an order owned by the caller.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.OrderRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	order, err := h.service.CreateOrder(c.UserContext(), middleware.Principal(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "Could not create order")
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleUpdateOrder replaces the product set of an order.
func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	var req services.OrderRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	order, err := h.service.UpdateOrder(c.UserContext(), middleware.Principal(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, err, "Could not update order")
	}
	return c.JSON(order)
}

// HandleDeleteOrder deletes an order.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	if err := h.service.DeleteOrder(c.UserContext(), middleware.Principal(c), c.Params("id")); err != nil {
		return respondError(c, h.logger, err, "Could not delete order")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
