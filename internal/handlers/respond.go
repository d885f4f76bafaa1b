package handlers

import (
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bookstore/internal/repositories"
	"bookstore/internal/services"
	"bookstore/internal/validation"
)

// parseBody decodes the request body into dst and validates it. On failure the
// 400 response has already been written and ok is false.
func parseBody(c *fiber.Ctx, v *validator.Validate, dst interface{}) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := v.Struct(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validation.Fields(err),
		})
	}
	return true, nil
}

// respondError maps a service error onto a status code and a JSON body.
// Unexpected errors are logged and reported as 500 with message.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error, message string) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrCategoryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.Is(err, repositories.ErrIntegrity), errors.Is(err, services.ErrUserExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": message,
			"error":   err.Error(),
		})
	default:
		logger.Error(message, zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": message,
		})
	}
}
