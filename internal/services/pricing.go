package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// ResolvePolicy decides what happens to product IDs that do not resolve to a
// stored product when an order's product set is written.
type ResolvePolicy string

const (
	// RejectUnknownProducts fails the write with a ValidationError on "product_ids".
	RejectUnknownProducts ResolvePolicy = "reject"
	// DropUnknownProducts silently leaves unknown IDs out of the product set.
	DropUnknownProducts ResolvePolicy = "drop"
)

// ParseResolvePolicy parses a policy name. An empty name selects RejectUnknownProducts.
func ParseResolvePolicy(s string) (ResolvePolicy, error) {
	switch p := ResolvePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return RejectUnknownProducts, nil
	case RejectUnknownProducts, DropUnknownProducts:
		return p, nil
	default:
		return "", errors.Errorf("unknown product resolve policy %q", s)
	}
}

// PricingEngine resolves order product sets and derives order totals.
//
// Totals are never stored: every call re-reads the current price of each
// associated product, so a price change shows up in every order on its next read.
type PricingEngine struct {
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	policy   ResolvePolicy
}

// NewPricingEngine creates a new PricingEngine.
func NewPricingEngine(products repositories.ProductRepository, orders repositories.OrderRepository, policy ResolvePolicy) *PricingEngine {
	if policy == "" {
		policy = RejectUnknownProducts
	}
	return &PricingEngine{
		products: products,
		orders:   orders,
		policy:   policy,
	}
}

// Policy returns the unknown product policy in effect.
func (e *PricingEngine) Policy() ResolvePolicy {
	return e.policy
}

// ComputeTotal returns the sum of the current prices of the order's products.
// An order without products totals zero.
func (e *PricingEngine) ComputeTotal(ctx context.Context, order *models.Order) (decimal.Decimal, error) {
	totals, err := e.ComputeTotals(ctx, []models.Order{*order})
	if err != nil {
		return decimal.Zero, err
	}
	return totals[order.ID], nil
}

// ComputeTotals derives the totals of several orders with a single price read,
// keyed by order ID.
func (e *PricingEngine) ComputeTotals(ctx context.Context, orders []models.Order) (map[string]decimal.Decimal, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, o := range orders {
		for _, id := range o.ProductIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	prices, err := e.products.CurrentPrices(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "read current prices")
	}

	totals := make(map[string]decimal.Decimal, len(orders))
	for _, o := range orders {
		total := decimal.Zero
		for _, id := range o.ProductIDs() {
			// A product deleted since the order was loaded no longer contributes.
			if price, ok := prices[id]; ok {
				total = total.Add(price)
			}
		}
		totals[o.ID] = total
	}
	return totals, nil
}

// CreateOrder persists a new order owned by ownerID with the products named by
// productIDs. Duplicate IDs are collapsed; unknown IDs are handled per the policy.
func (e *PricingEngine) CreateOrder(ctx context.Context, ownerID string, productIDs []string) (*models.Order, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	products, err := e.resolve(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:   ownerID,
		Products: products,
	}
	if err := e.orders.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return order, nil
}

// ReplaceProducts resolves productIDs and makes them the order's product set.
func (e *PricingEngine) ReplaceProducts(ctx context.Context, order *models.Order, productIDs []string) error {
	products, err := e.resolve(ctx, productIDs)
	if err != nil {
		return err
	}
	if err := e.orders.ReplaceProducts(ctx, order, products); err != nil {
		return errors.Wrap(err, "replace order products")
	}
	return nil
}

func (e *PricingEngine) resolve(ctx context.Context, productIDs []string) ([]models.Product, error) {
	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, NewValidationError("product_ids", "product id must not be empty")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	found, err := e.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}
	byID := make(map[string]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	products := make([]models.Product, 0, len(ids))
	var unknown []string
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		products = append(products, p)
	}

	if len(unknown) > 0 && e.policy == RejectUnknownProducts {
		return nil, NewValidationError("product_ids", "unknown product ids: "+strings.Join(unknown, ", "))
	}
	return products, nil
}
