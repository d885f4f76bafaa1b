package repositories

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

var _ UserRepository = (*GORMUserRepository)(nil)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return errors.Wrap(translate(err), "create user")
	}
	return nil
}

// Update saves the mutable columns of user.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(user).
		Select("email", "password", "is_admin", "updated_at").
		Updates(user)
	if res.Error != nil {
		return errors.Wrap(translate(res.Error), "update user")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "update user %s", user.ID)
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username)
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GORMUserRepository) first(ctx context.Context, cond string, arg string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, cond, arg).Error; err != nil {
		return nil, errors.Wrapf(translate(err), "get user by %q", arg)
	}
	return &user, nil
}
