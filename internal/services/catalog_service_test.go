package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookstore/internal/database"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
)

type catalog struct {
	db         *gorm.DB
	products   *services.ProductService
	categories *services.CategoryService
	pricing    *services.PricingEngine
	orders     *services.OrderService
}

// newCatalog wires the services on a private in-memory database.
func newCatalog(t *testing.T) *catalog {
	t.Helper()
	db, err := database.OpenMemory("services-" + uuid.New().String())
	require.NoError(t, err)

	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	pricing := services.NewPricingEngine(productRepo, orderRepo, services.RejectUnknownProducts)

	return &catalog{
		db:         db,
		products:   services.NewProductService(productRepo, categoryRepo, zap.NewNop()),
		categories: services.NewCategoryService(categoryRepo, zap.NewNop()),
		pricing:    pricing,
		orders:     services.NewOrderService(orderRepo, pricing, nil, zap.NewNop()),
	}
}

func boolPtr(b bool) *bool { return &b }

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	electronics, err := c.categories.CreateCategory(ctx, services.CategoryInput{Name: "Electronics"})
	require.NoError(t, err)
	assert.NotEmpty(t, electronics.ID)
	assert.True(t, electronics.Active)

	_, err = c.categories.CreateCategory(ctx, services.CategoryInput{Name: "Books", Active: boolPtr(false)})
	require.NoError(t, err)

	t.Run("duplicate name is an integrity error", func(t *testing.T) {
		_, err := c.categories.CreateCategory(ctx, services.CategoryInput{Name: "Electronics"})
		assert.ErrorIs(t, err, repositories.ErrIntegrity)
	})

	t.Run("name filter ignores case", func(t *testing.T) {
		found, err := c.categories.ListCategories(ctx, "ELEC")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Electronics", found[0].Name)

		all, err := c.categories.ListCategories(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("product count", func(t *testing.T) {
		_, err := c.products.CreateProduct(ctx, services.ProductInput{
			Title:       "Laptop",
			Price:       price("999.99"),
			CategoryIDs: []string{electronics.ID},
		})
		require.NoError(t, err)

		got, err := c.categories.GetCategoryByID(ctx, electronics.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.ProductCount)
	})

	t.Run("update keeps active unless given", func(t *testing.T) {
		updated, err := c.categories.UpdateCategory(ctx, electronics.ID, services.CategoryInput{Name: "Gadgets", Description: "Things"})
		require.NoError(t, err)
		assert.Equal(t, "Gadgets", updated.Name)
		assert.True(t, updated.Active)
	})

	t.Run("missing category", func(t *testing.T) {
		_, err := c.categories.GetCategoryByID(ctx, "nope")
		assert.ErrorIs(t, err, services.ErrCategoryNotFound)
		_, err = c.categories.UpdateCategory(ctx, "nope", services.CategoryInput{Name: "Whatever"})
		assert.ErrorIs(t, err, services.ErrCategoryNotFound)
		assert.ErrorIs(t, c.categories.DeleteCategory(ctx, "nope"), services.ErrCategoryNotFound)
	})

	t.Run("delete keeps products", func(t *testing.T) {
		require.NoError(t, c.categories.DeleteCategory(ctx, electronics.ID))
		products, err := c.products.ListProducts(ctx, repositories.ProductFilter{})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Empty(t, products[0].Categories)
	})
}

func TestProductService(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	fiction, err := c.categories.CreateCategory(ctx, services.CategoryInput{Name: "Fiction"})
	require.NoError(t, err)
	science, err := c.categories.CreateCategory(ctx, services.CategoryInput{Name: "Science"})
	require.NoError(t, err)

	prices := []string{"5.00", "12.99", "18.00", "39.99", "45.50", "7.25"}
	for i, p := range prices {
		category := fiction.ID
		if i%2 == 1 {
			category = science.ID
		}
		_, err := c.products.CreateProduct(ctx, services.ProductInput{
			Title:       fmt.Sprintf("Book %d", i),
			Description: fmt.Sprintf("volume %d of the series", i),
			Price:       price(p),
			CategoryIDs: []string{category},
		})
		require.NoError(t, err)
	}

	t.Run("create defaults active and links categories", func(t *testing.T) {
		product, err := c.products.CreateProduct(ctx, services.ProductInput{
			Title:       "Cosmos",
			Description: "Sagan",
			Price:       price("20.00"),
			CategoryIDs: []string{science.ID},
		})
		require.NoError(t, err)
		assert.True(t, product.Active)

		stored, err := c.products.GetProductByID(ctx, product.ID)
		require.NoError(t, err)
		assert.True(t, stored.Price.Equal(price("20")))
		assert.Equal(t, []string{science.ID}, stored.CategoryIDs())

		require.NoError(t, c.products.DeleteProduct(ctx, product.ID))
	})

	t.Run("explicit inactive", func(t *testing.T) {
		product, err := c.products.CreateProduct(ctx, services.ProductInput{Title: "Draft", Price: price("1.00"), Active: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, product.Active)
		require.NoError(t, c.products.DeleteProduct(ctx, product.ID))
	})

	t.Run("unknown category is a validation error", func(t *testing.T) {
		_, err := c.products.CreateProduct(ctx, services.ProductInput{Title: "Lost", Price: price("1.00"), CategoryIDs: []string{"nope"}})
		var verr *services.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "category_ids")
	})

	t.Run("featured is the five most expensive", func(t *testing.T) {
		featured, err := c.products.FeaturedProducts(ctx)
		require.NoError(t, err)
		require.Len(t, featured, services.FeaturedLimit)
		assert.True(t, featured[0].Price.Equal(price("45.50")))
		assert.True(t, featured[4].Price.Equal(price("7.25")))
		for i := 1; i < len(featured); i++ {
			assert.True(t, featured[i-1].Price.GreaterThanOrEqual(featured[i].Price))
		}
	})

	t.Run("search matches title and description", func(t *testing.T) {
		byTitle, err := c.products.SearchProducts(ctx, "book 3")
		require.NoError(t, err)
		require.Len(t, byTitle, 1)

		byDescription, err := c.products.SearchProducts(ctx, "SERIES")
		require.NoError(t, err)
		assert.Len(t, byDescription, len(prices))
	})

	t.Run("filters combine", func(t *testing.T) {
		minPrice := decimal.RequireFromString("10")
		maxPrice := decimal.RequireFromString("40")
		found, err := c.products.ListProducts(ctx, repositories.ProductFilter{
			CategoryID: science.ID,
			MinPrice:   &minPrice,
			MaxPrice:   &maxPrice,
		})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "Book 1", found[0].Title)
		assert.Equal(t, "Book 3", found[1].Title)
	})

	t.Run("update replaces fields and categories", func(t *testing.T) {
		all, err := c.products.ListProducts(ctx, repositories.ProductFilter{Title: "Book 0"})
		require.NoError(t, err)
		require.Len(t, all, 1)

		updated, err := c.products.UpdateProduct(ctx, all[0].ID, services.ProductInput{
			Title:       "Book 0 (2nd edition)",
			Price:       price("6.00"),
			CategoryIDs: []string{science.ID},
		})
		require.NoError(t, err)
		assert.True(t, updated.Active)

		stored, err := c.products.GetProductByID(ctx, all[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Book 0 (2nd edition)", stored.Title)
		assert.True(t, stored.Price.Equal(price("6")))
		assert.Equal(t, []string{science.ID}, stored.CategoryIDs())
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := c.products.GetProductByID(ctx, "nope")
		assert.ErrorIs(t, err, services.ErrProductNotFound)
		_, err = c.products.UpdateProduct(ctx, "nope", services.ProductInput{Title: "Nope", Price: price("1")})
		assert.ErrorIs(t, err, services.ErrProductNotFound)
		assert.ErrorIs(t, c.products.DeleteProduct(ctx, "nope"), services.ErrProductNotFound)
	})
}

func TestOrderTotalsFollowStoredPrices(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	laptop, err := c.products.CreateProduct(ctx, services.ProductInput{Title: "Laptop", Price: price("999.99")})
	require.NoError(t, err)
	mouse, err := c.products.CreateProduct(ctx, services.ProductInput{Title: "Mouse", Price: price("25.00")})
	require.NoError(t, err)

	order, err := c.orders.CreateOrder(ctx, alice, services.OrderRequest{ProductIDs: []string{laptop.ID, mouse.ID, laptop.ID}})
	require.NoError(t, err)
	assert.Len(t, order.Products, 2)
	assert.True(t, order.Total.Equal(price("1024.99")), "got %s", order.Total)

	_, err = c.products.UpdateProduct(ctx, laptop.ID, services.ProductInput{Title: "Laptop", Price: price("899.99")})
	require.NoError(t, err)

	reread, err := c.orders.GetOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.True(t, reread.Total.Equal(price("924.99")), "got %s", reread.Total)

	require.NoError(t, c.products.DeleteProduct(ctx, mouse.ID))
	reread, err = c.orders.GetOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Len(t, reread.Products, 1)
	assert.True(t, reread.Total.Equal(price("899.99")), "got %s", reread.Total)

	empty, err := c.orders.CreateOrder(ctx, bob, services.OrderRequest{})
	require.NoError(t, err)
	assert.True(t, empty.Total.IsZero())
	assert.NotNil(t, empty.Products)

	mine, err := c.orders.ListOrders(ctx, bob)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, empty.ID, mine[0].ID)
}
