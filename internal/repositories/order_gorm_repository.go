package repositories

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

var _ OrderRepository = (*GORMOrderRepository)(nil)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func (r *GORMOrderRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Products.Categories").
		Order("created_at").
		Order("id")
}

// ListAll retrieves every order.
func (r *GORMOrderRepository) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.query(ctx).Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListByOwner retrieves the orders owned by userID.
func (r *GORMOrderRepository) ListByOwner(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.query(ctx).Where("user_id = ?", userID).Find(&orders).Error; err != nil {
		return nil, errors.Wrapf(err, "list orders of user %s", userID)
	}
	return orders, nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.query(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(translate(err), "get order %s", id)
	}
	return &order, nil
}

// Create persists order and its product links in one transaction.
// Products themselves are never written.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Products.*").Create(order).Error; err != nil {
		return errors.Wrap(translate(err), "create order")
	}
	return nil
}

// ReplaceProducts swaps the product set of order for products.
func (r *GORMOrderRepository) ReplaceProducts(ctx context.Context, order *models.Order, products []models.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM order_products WHERE order_id = ?", order.ID).Error; err != nil {
			return errors.Wrap(err, "unlink order products")
		}
		for _, p := range products {
			err := tx.Exec("INSERT INTO order_products (order_id, product_id) VALUES (?, ?)", order.ID, p.ID).Error
			if err != nil {
				return errors.Wrap(translate(err), "link order product")
			}
		}
		order.Products = products
		return nil
	})
}

// Delete deletes an order and its product links. Products are kept.
func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM order_products WHERE order_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "unlink order products")
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete order")
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrNotFound, "delete order %s", id)
		}
		return nil
	})
}
