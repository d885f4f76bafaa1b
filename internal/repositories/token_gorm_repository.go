package repositories

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

var _ TokenStore = (*GORMTokenStore)(nil)

// GORMTokenStore stores issued tokens in the auth_tokens table.
type GORMTokenStore struct {
	db *gorm.DB
}

// NewGORMTokenStore creates a new instance of GORMTokenStore.
func NewGORMTokenStore(db *gorm.DB) *GORMTokenStore {
	return &GORMTokenStore{db: db}
}

// Save records an issued token.
func (s *GORMTokenStore) Save(ctx context.Context, token models.AuthToken) error {
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return errors.Wrap(translate(err), "save token")
	}
	return nil
}

// IsActive reports whether the token was issued, not revoked and not expired at now.
func (s *GORMTokenStore) IsActive(ctx context.Context, id string, now time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AuthToken{}).
		Where("id = ? AND expires_at > ?", id, now).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "check token")
	}
	return n > 0, nil
}

// Revoke deletes the token record. Revoking an unknown token is not an error.
func (s *GORMTokenStore) Revoke(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.AuthToken{}, "id = ?", id).Error; err != nil {
		return errors.Wrap(err, "revoke token")
	}
	return nil
}

// PurgeExpired deletes tokens that expired before now and returns how many were removed.
func (s *GORMTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.AuthToken{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "purge expired tokens")
	}
	return res.RowsAffected, nil
}
