package middleware

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/services"
)

const principalKey = "principal"

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
}

// AuthRequired is a Fiber middleware that rejects requests without a valid,
// unrevoked token before any handler runs. On success the principal is stored
// in the request locals.
func AuthRequired(auth Authenticator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>" or "Token <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || (parts[0] != "Bearer" && parts[0] != "Token") || parts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		principal, err := auth.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"message": "Invalid or expired token",
				})
			}
			logger.Error("authenticate request", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not authenticate request",
			})
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// Principal returns the principal stored by AuthRequired, or nil when the
// request is unauthenticated.
func Principal(c *fiber.Ctx) *models.Principal {
	p, _ := c.Locals(principalKey).(*models.Principal)
	return p
}
