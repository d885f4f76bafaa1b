package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// Order event routing.
const (
	OrderExchange     = "orders"
	OrderCreatedEvent = "order.created"
	OrderUpdatedEvent = "order.updated"
	OrderDeletedEvent = "order.deleted"
)

// EventPublisher publishes a message body to an exchange.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderRequest is the client payload for creating or updating an order.
// Ownership is not part of the payload; it always comes from the principal.
type OrderRequest struct {
	ProductIDs []string `json:"product_ids" validate:"omitempty,dive,required"`
}

// OrderView is the read representation of an order.
type OrderView struct {
	ID        string           `json:"id"`
	Products  []models.Product `json:"products"`
	Total     decimal.Decimal  `json:"total"`
	Owner     string           `json:"owner"`
	CreatedAt time.Time        `json:"created_at"`
}

// OrderEvent is published after an order changes.
type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	Owner      string          `json:"owner"`
	ProductIDs []string        `json:"product_ids"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// OrderService applies the access policy to every order operation and
// delegates pricing to the PricingEngine.
type OrderService struct {
	orders    repositories.OrderRepository
	pricing   *PricingEngine
	policy    AccessPolicy
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are published.
func NewOrderService(orders repositories.OrderRepository, pricing *PricingEngine, publisher EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		pricing:   pricing,
		publisher: publisher,
		logger:    logger,
	}
}

// ListOrders returns the orders visible to p: all of them for an
// administrator, otherwise only the ones p owns.
func (s *OrderService) ListOrders(ctx context.Context, p *models.Principal) ([]OrderView, error) {
	if err := s.policy.Authorize(p); err != nil {
		return nil, err
	}

	var (
		orders []models.Order
		err    error
	)
	if s.policy.SeesAll(p) {
		orders, err = s.orders.ListAll(ctx)
	} else {
		orders, err = s.orders.ListByOwner(ctx, p.UserID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return s.views(ctx, orders)
}

// MyOrders returns the orders owned by p, whatever its privileges.
func (s *OrderService) MyOrders(ctx context.Context, p *models.Principal) ([]OrderView, error) {
	if err := s.policy.Authorize(p); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list own orders")
	}
	return s.views(ctx, orders)
}

// GetOrder returns a single order. Orders p may not see are reported as
// ErrOrderNotFound, exactly like missing ones.
func (s *OrderService) GetOrder(ctx context.Context, p *models.Principal, id string) (*OrderView, error) {
	order, err := s.visibleOrder(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, order)
}

// CreateOrder creates an order owned by p.
func (s *OrderService) CreateOrder(ctx context.Context, p *models.Principal, req OrderRequest) (*OrderView, error) {
	if err := s.policy.Authorize(p); err != nil {
		return nil, err
	}

	order, err := s.pricing.CreateOrder(ctx, p.UserID, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("owner", order.UserID),
		zap.Int("products", len(order.Products)))

	view, err := s.view(ctx, order)
	if err != nil {
		return nil, err
	}
	s.publish(OrderCreatedEvent, view)
	return view, nil
}

// UpdateOrder replaces the product set of an order visible to p.
// The owner never changes.
func (s *OrderService) UpdateOrder(ctx context.Context, p *models.Principal, id string, req OrderRequest) (*OrderView, error) {
	order, err := s.visibleOrder(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.pricing.ReplaceProducts(ctx, order, req.ProductIDs); err != nil {
		return nil, err
	}

	view, err := s.view(ctx, order)
	if err != nil {
		return nil, err
	}
	s.publish(OrderUpdatedEvent, view)
	return view, nil
}

// DeleteOrder deletes an order visible to p. Its products are kept.
func (s *OrderService) DeleteOrder(ctx context.Context, p *models.Principal, id string) error {
	order, err := s.visibleOrder(ctx, p, id)
	if err != nil {
		return err
	}
	view, err := s.view(ctx, order)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return errors.Wrap(err, "delete order")
	}
	s.logger.Info("order deleted", zap.String("order_id", order.ID), zap.String("by", p.UserID))

	s.publish(OrderDeletedEvent, view)
	return nil
}

func (s *OrderService) visibleOrder(ctx context.Context, p *models.Principal, id string) (*models.Order, error) {
	if err := s.policy.Authorize(p); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !s.policy.CanAccess(p, order) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) view(ctx context.Context, order *models.Order) (*OrderView, error) {
	total, err := s.pricing.ComputeTotal(ctx, order)
	if err != nil {
		return nil, err
	}
	return newOrderView(order, total), nil
}

func (s *OrderService) views(ctx context.Context, orders []models.Order) ([]OrderView, error) {
	totals, err := s.pricing.ComputeTotals(ctx, orders)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *newOrderView(&orders[i], totals[orders[i].ID]))
	}
	return views, nil
}

func newOrderView(order *models.Order, total decimal.Decimal) *OrderView {
	products := order.Products
	if products == nil {
		products = []models.Product{}
	}
	return &OrderView{
		ID:        order.ID,
		Products:  products,
		Total:     total,
		Owner:     order.UserID,
		CreatedAt: order.CreatedAt,
	}
}

func (s *OrderService) publish(eventType string, view *OrderView) {
	if s.publisher == nil {
		return
	}

	ids := make([]string, 0, len(view.Products))
	for _, p := range view.Products {
		ids = append(ids, p.ID)
	}
	body, err := json.Marshal(OrderEvent{
		Type:       eventType,
		OrderID:    view.ID,
		Owner:      view.Owner,
		ProductIDs: ids,
		Total:      view.Total,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("marshal order event", zap.String("order_id", view.ID), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(OrderExchange, eventType, body); err != nil {
		s.logger.Warn("publish order event",
			zap.String("order_id", view.ID),
			zap.String("event", eventType),
			zap.Error(err))
	}
}
