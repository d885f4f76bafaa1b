package services

import "bookstore/internal/models"

// AccessPolicy decides which orders a principal may see and change.
//
// A nil principal is unauthenticated and may do nothing. Administrators see
// every order; everyone else sees only the orders they own.
type AccessPolicy struct{}

// Authorize fails closed when there is no authenticated principal.
func (AccessPolicy) Authorize(p *models.Principal) error {
	if p == nil || p.UserID == "" {
		return ErrUnauthorized
	}
	return nil
}

// SeesAll reports whether p is scoped to all orders rather than its own.
func (AccessPolicy) SeesAll(p *models.Principal) bool {
	return p != nil && p.IsAdmin
}

// CanAccess reports whether order is visible to p. Invisible orders are
// reported to callers as not found.
func (a AccessPolicy) CanAccess(p *models.Principal, order *models.Order) bool {
	if a.Authorize(p) != nil || order == nil {
		return false
	}
	return a.SeesAll(p) || order.UserID == p.UserID
}
