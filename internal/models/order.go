package models

import "time"

// Order is a set of products owned by exactly one user.
// It never stores a total; see services.PricingEngine.
type Order struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"index;type:varchar(36);not null"`
	Products  []Product `gorm:"many2many:order_products;"`
	CreatedAt time.Time
}

// ProductIDs returns the identifiers of the products attached to the order.
func (o Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Products))
	for _, p := range o.Products {
		ids = append(ids, p.ID)
	}
	return ids
}
