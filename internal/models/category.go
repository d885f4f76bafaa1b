package models

import "time"

// Category groups products. Names are unique.
type Category struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name         string    `json:"name" gorm:"uniqueIndex;type:varchar(100);not null"`
	Description  string    `json:"description" gorm:"type:varchar(500)"`
	Active       bool      `json:"active"`
	ProductCount int64     `json:"product_count" gorm:"-"` // derived, filled by the category service
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
