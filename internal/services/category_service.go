package services

import (
	"context"

	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// CategoryInput is the client payload for creating or replacing a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Active      *bool  `json:"active"`
}

// CategoryService handles business logic related to categories.
type CategoryService struct {
	repo   repositories.CategoryRepository
	logger *zap.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(repo repositories.CategoryRepository, logger *zap.Logger) *CategoryService {
	return &CategoryService{repo: repo, logger: logger}
}

// ListCategories returns the categories whose name contains name, with their
// product counts.
func (s *CategoryService) ListCategories(ctx context.Context, name string) ([]models.Category, error) {
	categories, err := s.repo.List(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.fillCounts(ctx, categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetCategoryByID retrieves a single category with its product count.
func (s *CategoryService) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	categories := []models.Category{*category}
	if err := s.fillCounts(ctx, categories); err != nil {
		return nil, err
	}
	return &categories[0], nil
}

// CreateCategory creates a category. A duplicate name is rejected by storage
// with repositories.ErrIntegrity.
func (s *CategoryService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	category := &models.Category{
		Name:        in.Name,
		Description: in.Description,
		Active:      in.Active == nil || *in.Active,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}
	s.logger.Info("category created", zap.String("category_id", category.ID), zap.String("name", category.Name))
	return category, nil
}

// UpdateCategory replaces the fields of an existing category.
func (s *CategoryService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*models.Category, error) {
	category, err := s.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = in.Name
	category.Description = in.Description
	if in.Active != nil {
		category.Active = *in.Active
	}
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return category, nil
}

// DeleteCategory deletes a category. Its products are kept.
func (s *CategoryService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, ErrCategoryNotFound)
	}
	return nil
}

func (s *CategoryService) fillCounts(ctx context.Context, categories []models.Category) error {
	ids := make([]string, 0, len(categories))
	for _, c := range categories {
		ids = append(ids, c.ID)
	}
	counts, err := s.repo.CountProducts(ctx, ids)
	if err != nil {
		return err
	}
	for i := range categories {
		categories[i].ProductCount = counts[categories[i].ID]
	}
	return nil
}
