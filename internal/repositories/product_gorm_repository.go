package repositories

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

var _ ProductRepository = (*GORMProductRepository)(nil)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// List retrieves the products matching filter.
func (r *GORMProductRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Preload("Categories")

	if filter.Title != "" {
		q = q.Where("LOWER(title) LIKE ?", likePattern(filter.Title))
	}
	if filter.Query != "" {
		pattern := likePattern(filter.Query)
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.CategoryID != "" {
		q = q.Where("id IN (?)", r.db.Table("product_categories").
			Select("product_id").
			Where("category_id = ?", filter.CategoryID))
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.ByPrice {
		q = q.Order("price DESC").Order("id")
	} else {
		q = q.Order("created_at").Order("id")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// GetByID retrieves a single product by its ID.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Preload("Categories").First(&product, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrapf(translate(err), "get product %s", id)
	}
	return &product, nil
}

// GetByIDs retrieves every product whose ID is in ids. Unknown IDs are skipped.
func (r *GORMProductRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).Preload("Categories").Where("id IN ?", ids).Order("id").Find(&products).Error
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return products, nil
}

// Exists reports whether a product with the given ID is stored.
func (r *GORMProductRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, errors.Wrapf(err, "check product %s", id)
	}
	return n > 0, nil
}

// CurrentPrice reads the price of a product as currently stored.
func (r *GORMProductRepository) CurrentPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	prices, err := r.CurrentPrices(ctx, []string{id})
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := prices[id]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNotFound, "price of product %s", id)
	}
	return price, nil
}

// CurrentPrices reads the stored prices of the given products, keyed by ID.
// Products that no longer exist are absent from the result.
func (r *GORMProductRepository) CurrentPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	var rows []struct {
		ID    string
		Price decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Select("id", "price").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "read product prices")
	}
	for _, row := range rows {
		prices[row.ID] = row.Price
	}
	return prices, nil
}

// Create creates a new product together with its category links.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Categories.*").Create(product).Error; err != nil {
		return errors.Wrap(translate(err), "create product")
	}
	return nil
}

// Update saves every column of product and replaces its category links.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(product).
			Select("title", "description", "price", "active", "updated_at").
			Updates(product)
		if res.Error != nil {
			return errors.Wrap(translate(res.Error), "update product")
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrNotFound, "update product %s", product.ID)
		}

		assoc := tx.Model(product).Association("Categories")
		if len(product.Categories) == 0 {
			if err := assoc.Clear(); err != nil {
				return errors.Wrap(err, "clear product categories")
			}
			return nil
		}
		if err := assoc.Replace(product.Categories); err != nil {
			return errors.Wrap(err, "replace product categories")
		}
		return nil
	})
}

// Delete deletes a product. Orders and categories referencing it lose the
// link; they are not deleted.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM order_products WHERE product_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "unlink product from orders")
		}
		if err := tx.Exec("DELETE FROM product_categories WHERE product_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "unlink product from categories")
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete product")
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrNotFound, "delete product %s", id)
		}
		return nil
	})
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
