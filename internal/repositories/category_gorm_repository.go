package repositories

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

var _ CategoryRepository = (*GORMCategoryRepository)(nil)

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

// NewGORMCategoryRepository creates a new instance of GORMCategoryRepository.
func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db}
}

// List retrieves categories whose name contains name, ignoring case.
// An empty name lists every category.
func (r *GORMCategoryRepository) List(ctx context.Context, name string) ([]models.Category, error) {
	q := r.db.WithContext(ctx).Order("name").Order("id")
	if name != "" {
		q = q.Where("LOWER(name) LIKE ?", likePattern(name))
	}
	var categories []models.Category
	if err := q.Find(&categories).Error; err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

// GetByID retrieves a single category by its ID.
func (r *GORMCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(translate(err), "get category %s", id)
	}
	return &category, nil
}

// GetByIDs retrieves every category whose ID is in ids. Unknown IDs are skipped.
func (r *GORMCategoryRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Category, error) {
	if len(ids) == 0 {
		return []models.Category{}, nil
	}
	var categories []models.Category
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&categories).Error; err != nil {
		return nil, errors.Wrap(err, "get categories by ids")
	}
	return categories, nil
}

// CountProducts returns the number of products linked to each category.
// Categories without products are absent from the result.
func (r *GORMCategoryRepository) CountProducts(ctx context.Context, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		CategoryID string
		Count      int64
	}
	err := r.db.WithContext(ctx).Table("product_categories").
		Select("category_id, COUNT(*) AS count").
		Where("category_id IN ?", ids).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count category products")
	}
	for _, row := range rows {
		counts[row.CategoryID] = row.Count
	}
	return counts, nil
}

// Create creates a new category. A duplicate name yields ErrIntegrity.
func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return errors.Wrap(translate(err), "create category")
	}
	return nil
}

// Update saves every column of category.
func (r *GORMCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	res := r.db.WithContext(ctx).Model(category).
		Select("name", "description", "active", "updated_at").
		Updates(category)
	if res.Error != nil {
		return errors.Wrap(translate(res.Error), "update category")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "update category %s", category.ID)
	}
	return nil
}

// Delete deletes a category and its product links. Products are kept.
func (r *GORMCategoryRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM product_categories WHERE category_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "unlink category from products")
		}
		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete category")
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrNotFound, "delete category %s", id)
		}
		return nil
	})
}
