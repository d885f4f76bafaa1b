package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a book or other item sold in the store.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string          `json:"title" gorm:"type:varchar(100);not null"`
	Description string          `json:"description" gorm:"type:varchar(500)"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Active      bool            `json:"active"`
	Categories  []Category      `json:"category" gorm:"many2many:product_categories;"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CategoryIDs returns the identifiers of the product's categories.
func (p Product) CategoryIDs() []string {
	ids := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}
