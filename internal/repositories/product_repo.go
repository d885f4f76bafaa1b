package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"bookstore/internal/models"
)

// ProductFilter narrows a product listing. Zero values disable a filter.
type ProductFilter struct {
	Title      string // case-insensitive substring of the title
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Query      string // case-insensitive substring of title or description
	ByPrice    bool   // order by price descending instead of creation time
	Limit      int
}

// ProductRepository defines the interface for product data access.
// Returned products are detached snapshots with their categories loaded.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	Exists(ctx context.Context, id string) (bool, error)
	CurrentPrice(ctx context.Context, id string) (decimal.Decimal, error)
	CurrentPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
