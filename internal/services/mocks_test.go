package services_test

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) List(ctx context.Context, filter repositories.ProductFilter) ([]models.Product, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) CurrentPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockProductRepository) CurrentPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockOrderRepository is a mock implementation of repositories.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) ListAll(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByOwner(ctx context.Context, userID string) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) ReplaceProducts(ctx context.Context, order *models.Order, products []models.Product) error {
	return m.Called(ctx, order, products).Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockTokenStore is a mock implementation of repositories.TokenStore
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Save(ctx context.Context, token models.AuthToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockTokenStore) IsActive(ctx context.Context, id string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenStore) Revoke(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, routingKey string, body []byte) error {
	return m.Called(exchange, routingKey, body).Error(0)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
