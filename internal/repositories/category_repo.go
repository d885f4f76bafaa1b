package repositories

import (
	"context"

	"bookstore/internal/models"
)

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	List(ctx context.Context, name string) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Category, error)
	CountProducts(ctx context.Context, ids []string) (map[string]int64, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
}
