package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
)

var (
	alice = &models.Principal{UserID: "alice", Username: "alice", TokenID: "t1"}
	bob   = &models.Principal{UserID: "bob", Username: "bob", TokenID: "t2"}
	admin = &models.Principal{UserID: "root", Username: "root", IsAdmin: true, TokenID: "t3"}
)

type orderFixture struct {
	products  *MockProductRepository
	orders    *MockOrderRepository
	publisher *MockPublisher
	service   *services.OrderService
}

func newOrderFixture(withPublisher bool) *orderFixture {
	f := &orderFixture{
		products: new(MockProductRepository),
		orders:   new(MockOrderRepository),
	}
	engine := services.NewPricingEngine(f.products, f.orders, services.RejectUnknownProducts)
	if withPublisher {
		f.publisher = new(MockPublisher)
		f.service = services.NewOrderService(f.orders, engine, f.publisher, zap.NewNop())
	} else {
		f.service = services.NewOrderService(f.orders, engine, nil, zap.NewNop())
	}
	return f
}

func laptopOrder(owner string) *models.Order {
	return &models.Order{
		ID:       "order-" + owner,
		UserID:   owner,
		Products: []models.Product{{ID: "laptop", Title: "Laptop", Price: price("999.99")}},
	}
}

func laptopPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{"laptop": price("999.99")}
}

func TestOrderService_Unauthenticated(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(true)

	_, err := f.service.ListOrders(ctx, nil)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	_, err = f.service.MyOrders(ctx, nil)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	_, err = f.service.GetOrder(ctx, nil, "order-alice")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	_, err = f.service.CreateOrder(ctx, nil, services.OrderRequest{ProductIDs: []string{"laptop"}})
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	_, err = f.service.UpdateOrder(ctx, &models.Principal{}, "order-alice", services.OrderRequest{})
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	err = f.service.DeleteOrder(ctx, nil, "order-alice")
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Nothing is read or written before the principal is checked.
	assert.Empty(t, f.orders.Calls)
	assert.Empty(t, f.products.Calls)
	assert.Empty(t, f.publisher.Calls)
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("regular user sees own orders", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("ListByOwner", ctx, "alice").Return([]models.Order{*laptopOrder("alice")}, nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()

		views, err := f.service.ListOrders(ctx, alice)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "alice", views[0].Owner)
		assert.True(t, views[0].Total.Equal(price("999.99")))
		f.orders.AssertNotCalled(t, "ListAll", mock.Anything)
		f.orders.AssertExpectations(t)
	})

	t.Run("administrator sees every order", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("ListAll", ctx).Return([]models.Order{*laptopOrder("alice"), *laptopOrder("bob")}, nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()

		views, err := f.service.ListOrders(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, views, 2)
		f.orders.AssertExpectations(t)
	})

	t.Run("my orders is scoped to the caller even for administrators", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("ListByOwner", ctx, "root").Return([]models.Order{}, nil).Once()
		f.products.On("CurrentPrices", ctx, mock.Anything).Return(map[string]decimal.Decimal{}, nil).Once()

		views, err := f.service.MyOrders(ctx, admin)
		require.NoError(t, err)
		assert.Empty(t, views)
		f.orders.AssertNotCalled(t, "ListAll", mock.Anything)
	})

	t.Run("storage failure", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("ListByOwner", ctx, "alice").Return([]models.Order(nil), errors.New("database error")).Once()

		_, err := f.service.ListOrders(ctx, alice)
		assert.ErrorContains(t, err, "database error")
	})
}

func TestOrderService_GetOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("owner can read", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("GetByID", ctx, "order-alice").Return(laptopOrder("alice"), nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()

		view, err := f.service.GetOrder(ctx, alice, "order-alice")
		require.NoError(t, err)
		assert.Equal(t, "order-alice", view.ID)
		assert.True(t, view.Total.Equal(price("999.99")))
	})

	t.Run("other users get not found", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("GetByID", ctx, "order-alice").Return(laptopOrder("alice"), nil).Once()

		_, err := f.service.GetOrder(ctx, bob, "order-alice")
		assert.ErrorIs(t, err, services.ErrOrderNotFound)
		f.products.AssertNotCalled(t, "CurrentPrices", mock.Anything, mock.Anything)
	})

	t.Run("administrator can read any order", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("GetByID", ctx, "order-alice").Return(laptopOrder("alice"), nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()

		view, err := f.service.GetOrder(ctx, admin, "order-alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", view.Owner)
	})

	t.Run("missing order", func(t *testing.T) {
		f := newOrderFixture(false)
		f.orders.On("GetByID", ctx, "nope").Return(nil, errors.Wrap(repositories.ErrNotFound, "get order nope")).Once()

		_, err := f.service.GetOrder(ctx, admin, "nope")
		assert.ErrorIs(t, err, services.ErrOrderNotFound)
	})
}

func TestOrderService_CreateOrder(t *testing.T) {
	ctx := context.Background()
	laptop := models.Product{ID: "laptop", Title: "Laptop", Price: price("999.99")}

	t.Run("owner comes from the principal and an event is published", func(t *testing.T) {
		f := newOrderFixture(true)
		f.products.On("GetByIDs", ctx, []string{"laptop"}).Return([]models.Product{laptop}, nil).Once()
		f.orders.On("Create", ctx, mock.MatchedBy(func(o *models.Order) bool {
			return o.UserID == "alice"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Order).ID = "o-1"
		}).Return(nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()
		f.publisher.On("Publish", services.OrderExchange, services.OrderCreatedEvent, mock.MatchedBy(func(body []byte) bool {
			var event services.OrderEvent
			if err := json.Unmarshal(body, &event); err != nil {
				return false
			}
			return event.OrderID == "o-1" && event.Owner == "alice" && event.Total.Equal(price("999.99"))
		})).Return(nil).Once()

		view, err := f.service.CreateOrder(ctx, alice, services.OrderRequest{ProductIDs: []string{"laptop"}})
		require.NoError(t, err)
		assert.Equal(t, "o-1", view.ID)
		assert.Equal(t, "alice", view.Owner)
		assert.True(t, view.Total.Equal(price("999.99")))
		f.orders.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		f := newOrderFixture(true)
		f.products.On("GetByIDs", ctx, []string{"laptop"}).Return([]models.Product{laptop}, nil).Once()
		f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

		_, err := f.service.CreateOrder(ctx, alice, services.OrderRequest{ProductIDs: []string{"laptop"}})
		assert.NoError(t, err)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newOrderFixture(true)
		f.products.On("GetByIDs", ctx, []string{"ghost"}).Return([]models.Product{}, nil).Once()

		_, err := f.service.CreateOrder(ctx, alice, services.OrderRequest{ProductIDs: []string{"ghost"}})
		var verr *services.ValidationError
		assert.ErrorAs(t, err, &verr)
		f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderService_UpdateOrder(t *testing.T) {
	ctx := context.Background()
	mouse := models.Product{ID: "mouse", Title: "Mouse", Price: price("25.00")}

	t.Run("owner replaces products", func(t *testing.T) {
		f := newOrderFixture(false)
		order := laptopOrder("alice")
		f.orders.On("GetByID", ctx, order.ID).Return(order, nil).Once()
		f.products.On("GetByIDs", ctx, []string{"mouse"}).Return([]models.Product{mouse}, nil).Once()
		f.orders.On("ReplaceProducts", ctx, order, []models.Product{mouse}).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Order).Products = args.Get(2).([]models.Product)
		}).Return(nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"mouse"}).Return(map[string]decimal.Decimal{"mouse": price("25.00")}, nil).Once()

		view, err := f.service.UpdateOrder(ctx, alice, order.ID, services.OrderRequest{ProductIDs: []string{"mouse"}})
		require.NoError(t, err)
		assert.Equal(t, "alice", view.Owner)
		assert.True(t, view.Total.Equal(price("25")))
		f.orders.AssertExpectations(t)
	})

	t.Run("other users get not found", func(t *testing.T) {
		f := newOrderFixture(false)
		order := laptopOrder("alice")
		f.orders.On("GetByID", ctx, order.ID).Return(order, nil).Once()

		_, err := f.service.UpdateOrder(ctx, bob, order.ID, services.OrderRequest{ProductIDs: []string{"mouse"}})
		assert.ErrorIs(t, err, services.ErrOrderNotFound)
		f.orders.AssertNotCalled(t, "ReplaceProducts", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderService_DeleteOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes and the event carries the last total", func(t *testing.T) {
		f := newOrderFixture(true)
		order := laptopOrder("alice")
		f.orders.On("GetByID", ctx, order.ID).Return(order, nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()
		f.orders.On("Delete", ctx, order.ID).Return(nil).Once()
		f.publisher.On("Publish", services.OrderExchange, services.OrderDeletedEvent, mock.MatchedBy(func(body []byte) bool {
			var event services.OrderEvent
			return json.Unmarshal(body, &event) == nil && event.Total.Equal(price("999.99"))
		})).Return(nil).Once()

		require.NoError(t, f.service.DeleteOrder(ctx, alice, order.ID))
		f.orders.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("other users get not found", func(t *testing.T) {
		f := newOrderFixture(true)
		order := laptopOrder("alice")
		f.orders.On("GetByID", ctx, order.ID).Return(order, nil).Once()

		err := f.service.DeleteOrder(ctx, bob, order.ID)
		assert.ErrorIs(t, err, services.ErrOrderNotFound)
		f.orders.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("administrator deletes any order", func(t *testing.T) {
		f := newOrderFixture(false)
		order := laptopOrder("bob")
		f.orders.On("GetByID", ctx, order.ID).Return(order, nil).Once()
		f.products.On("CurrentPrices", ctx, []string{"laptop"}).Return(laptopPrices(), nil).Once()
		f.orders.On("Delete", ctx, order.ID).Return(nil).Once()

		require.NoError(t, f.service.DeleteOrder(ctx, admin, order.ID))
		f.orders.AssertExpectations(t)
	})
}

func TestAccessPolicy(t *testing.T) {
	var policy services.AccessPolicy
	order := laptopOrder("alice")

	assert.ErrorIs(t, policy.Authorize(nil), services.ErrUnauthorized)
	assert.ErrorIs(t, policy.Authorize(&models.Principal{}), services.ErrUnauthorized)
	assert.NoError(t, policy.Authorize(alice))

	assert.True(t, policy.CanAccess(alice, order))
	assert.False(t, policy.CanAccess(bob, order))
	assert.True(t, policy.CanAccess(admin, order))
	assert.False(t, policy.CanAccess(nil, order))
	assert.False(t, policy.CanAccess(admin, nil))

	assert.True(t, policy.SeesAll(admin))
	assert.False(t, policy.SeesAll(alice))
}
