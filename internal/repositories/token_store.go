package repositories

import (
	"context"
	"time"

	"bookstore/internal/models"
)

// TokenStore keeps track of issued login tokens so that logout can revoke them.
type TokenStore interface {
	Save(ctx context.Context, token models.AuthToken) error
	IsActive(ctx context.Context, id string, now time.Time) (bool, error)
	Revoke(ctx context.Context, id string) error
}
