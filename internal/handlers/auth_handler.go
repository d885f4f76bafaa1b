package handlers

import (
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/services"
	"bookstore/internal/validation"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validation.New(),
		logger:      logger,
	}
}

// RegisterRoutes registers the authentication routes. Logout needs a valid token.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/token", h.HandleLogin)
	authRoutes.Post("/logout", authRequired, h.HandleLogout)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		return respondError(c, h.logger, err, "Registration failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// HandleLogin handles user login and issues a token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	token, user, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.Info("login rejected", zap.String("username", req.Username))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication failed",
				"error":   err.Error(),
			})
		}
		return respondError(c, h.logger, err, "Could not log in")
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// HandleLogout revokes the token the request was made with.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), middleware.Principal(c)); err != nil {
		return respondError(c, h.logger, err, "Could not log out")
	}
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}
