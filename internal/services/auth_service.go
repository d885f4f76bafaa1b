package services

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// DefaultTokenTTL is used when no token lifetime is configured.
const DefaultTokenTTL = 24 * time.Hour

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	tokens     repositories.TokenStore
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, tokens repositories.TokenStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &AuthService{
		userRepo:   userRepo,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: tokenTTL,
		logger:     logger,
	}
}

// RegisterUser registers a new regular user, hashes their password, and saves them to the database.
// Registration never grants administrator rights.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	// Check if username or email already exists
	if existing, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existing != nil {
		return errors.Wrapf(ErrUserExists, "username '%s' already taken", user.Username)
	}
	if existing, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existing != nil {
		return errors.Wrapf(ErrUserExists, "email '%s' already registered", user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	user.Password = string(hashedPassword)
	user.IsAdmin = false

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrIntegrity) {
			return errors.Wrap(ErrUserExists, err.Error())
		}
		return errors.Wrap(err, "register user")
	}
	return nil
}

// LoginUser authenticates a user and returns a signed token if successful.
// The token stays valid until it expires or is revoked by Logout.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Do not reveal whether the username exists.
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	tokenID := uuid.New().String()
	expiresAt := now.Add(s.tokenDurat)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti":      tokenID,
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}

	err = s.tokens.Save(ctx, models.AuthToken{
		ID:        tokenID,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "record token")
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return tokenString, user, nil
}

// ValidateToken parses and validates a token signature and expiry, returning
// the claims if valid. It does not consult the token store.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Authenticate turns a bearer token into a Principal. The token must be
// well formed, unexpired and not revoked, and its user must still exist.
// Any failure yields ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, ErrUnauthorized
	}
	tokenID, _ := claims["jti"].(string)
	userID, _ := claims["user_id"].(string)
	if tokenID == "" || userID == "" {
		return nil, ErrUnauthorized
	}

	active, err := s.tokens.IsActive(ctx, tokenID, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "check token")
	}
	if !active {
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "load token user")
	}

	return &models.Principal{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		TokenID:  tokenID,
	}, nil
}

// Logout revokes the token the principal authenticated with.
func (s *AuthService) Logout(ctx context.Context, p *models.Principal) error {
	if p == nil || p.TokenID == "" {
		return ErrUnauthorized
	}
	if err := s.tokens.Revoke(ctx, p.TokenID); err != nil {
		return errors.Wrap(err, "revoke token")
	}
	s.logger.Info("user logged out", zap.String("user_id", p.UserID))
	return nil
}

// EnsureAdmin makes sure an administrator account with the given username
// exists. An existing user is promoted and gets the given password.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		user.Password = string(hashed)
		user.IsAdmin = true
		if email != "" {
			user.Email = email
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return errors.Wrap(err, "promote admin")
		}
	case errors.Is(err, repositories.ErrNotFound):
		user = &models.User{
			Username: username,
			Email:    email,
			Password: string(hashed),
			IsAdmin:  true,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return errors.Wrap(err, "create admin")
		}
	default:
		return errors.Wrap(err, "look up admin")
	}

	s.logger.Info("administrator ready", zap.String("username", username))
	return nil
}
