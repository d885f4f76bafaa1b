package models

import "time"

// User represents a customer or administrator of the store.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthToken records an issued login token so it can be revoked on logout.
// ID is the token's jti claim.
type AuthToken struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"index;type:varchar(36);not null"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

// Principal is the authenticated identity behind a request.
type Principal struct {
	UserID   string
	Username string
	IsAdmin  bool
	TokenID  string
}
