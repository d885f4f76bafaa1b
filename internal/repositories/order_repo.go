package repositories

import (
	"context"

	"bookstore/internal/models"
)

// OrderRepository defines the interface for order data access.
// Orders are returned with their products loaded; listings are ordered by
// creation time and then id.
type OrderRepository interface {
	ListAll(ctx context.Context) ([]models.Order, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	ReplaceProducts(ctx context.Context, order *models.Order, products []models.Product) error
	Delete(ctx context.Context, id string) error
}
