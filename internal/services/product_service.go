package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// FeaturedLimit is the number of products returned by FeaturedProducts.
const FeaturedLimit = 5

// ProductInput is the client payload for creating or replacing a product.
type ProductInput struct {
	Title       string          `json:"title" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	Price       decimal.Decimal `json:"price" validate:"dpositive,dcents"`
	Active      *bool           `json:"active"`
	CategoryIDs []string        `json:"category_ids" validate:"omitempty,dive,required"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo       repositories.ProductRepository
	categories repositories.CategoryRepository
	logger     *zap.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, categories repositories.CategoryRepository, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		logger:     logger,
	}
}

// ListProducts retrieves the products matching filter.
func (s *ProductService) ListProducts(ctx context.Context, filter repositories.ProductFilter) ([]models.Product, error) {
	return s.repo.List(ctx, filter)
}

// FeaturedProducts returns the most expensive products, highest price first.
func (s *ProductService) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.List(ctx, repositories.ProductFilter{ByPrice: true, Limit: FeaturedLimit})
}

// SearchProducts matches q against title and description. An empty query
// returns every product.
func (s *ProductService) SearchProducts(ctx context.Context, q string) ([]models.Product, error) {
	return s.repo.List(ctx, repositories.ProductFilter{Query: strings.TrimSpace(q)})
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return product, nil
}

// CreateProduct creates a new product. Active defaults to true.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	categories, err := s.resolveCategories(ctx, in.CategoryIDs)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Active:      in.Active == nil || *in.Active,
		Categories:  categories,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.String("product_id", product.ID), zap.String("price", product.Price.String()))
	return product, nil
}

// UpdateProduct replaces the fields and categories of an existing product.
// A price change is reflected in the total of every order holding the product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	product, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	categories, err := s.resolveCategories(ctx, in.CategoryIDs)
	if err != nil {
		return nil, err
	}

	product.Title = in.Title
	product.Description = in.Description
	product.Price = in.Price
	if in.Active != nil {
		product.Active = *in.Active
	}
	product.Categories = categories

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return product, nil
}

// DeleteProduct deletes a product by its ID. Orders holding it are kept.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, ErrProductNotFound)
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

func (s *ProductService) resolveCategories(ctx context.Context, ids []string) ([]models.Category, error) {
	if len(ids) == 0 {
		return []models.Category{}, nil
	}
	found, err := s.categories.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve categories")
	}
	known := make(map[string]struct{}, len(found))
	for _, c := range found {
		known[c.ID] = struct{}{}
	}
	var unknown []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, NewValidationError("category_ids", "unknown category ids: "+strings.Join(unknown, ", "))
	}
	return found, nil
}

// notFound replaces a repository not-found error with the given sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return sentinel
	}
	return err
}
