package service_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dentalmart/marketplace/internal/cache"
	"github.com/dentalmart/marketplace/internal/config"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/realtime"
	service "github.com/dentalmart/marketplace/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryCache is a map-backed cache.Cache so product tests can observe hits
// and invalidations without a Redis mock.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, value any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if !ok {
		return false, nil
	}

	return true, json.Unmarshal(data, value)
}

func (c *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data

	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)

	return nil
}

func (c *memoryCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix+":") {
			delete(c.data, key)
		}
	}

	return nil
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.data[key]

	return ok
}

type productFixture struct {
	service      *service.ProductService
	productRepo  *mockProductRepo
	categoryRepo *mockCategoryRepo
	cache        *memoryCache
}

func newProductFixture() *productFixture {
	productRepo := new(mockProductRepo)
	categoryRepo := new(mockCategoryRepo)
	memCache := newMemoryCache()
	cacheCfg := &config.CacheConfig{DefaultTTL: 10 * time.Minute, ListingTTL: time.Minute}

	return &productFixture{
		service:      service.NewProductService(productRepo, categoryRepo, memCache, cacheCfg, testPricing(), realtime.NewHub()),
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		cache:        memCache,
	}
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	vendorID := uuid.New()

	t.Run("Failure - Unknown Category", func(t *testing.T) {
		f := newProductFixture()

		categoryID := uuid.New()
		f.categoryRepo.On("GetCategoryByID", ctx, categoryID).Return(nil, sql.ErrNoRows).Once()

		product, err := f.service.CreateProduct(ctx, vendorID, &models.CreateProductRequest{
			CategoryID: categoryID,
			Name:       "Saliva Ejectors",
			Price:      6.5,
			SKU:        "SE-100",
		})

		assert.Nil(t, product)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		f.productRepo.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	})
}

func TestGetProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("Cache Hit Skips The Database", func(t *testing.T) {
		f := newProductFixture()

		product := activeProduct(30.0, 10)
		key := cache.Key(cache.ProductKeyPrefix, product.ID.String())
		require.NoError(t, f.cache.Set(ctx, key, product, 0))

		got, err := f.service.GetProduct(ctx, product.ID)

		require.NoError(t, err)
		assert.Equal(t, product.Name, got.Name)
		f.productRepo.AssertNotCalled(t, "GetProductByID", mock.Anything, mock.Anything)
	})

	t.Run("Cache Miss Populates The Cache", func(t *testing.T) {
		f := newProductFixture()

		product := activeProduct(30.0, 10)
		f.productRepo.On("GetProductByID", ctx, product.ID).Return(product, nil).Once()

		got, err := f.service.GetProduct(ctx, product.ID)

		require.NoError(t, err)
		assert.Equal(t, product.ID, got.ID)
		assert.True(t, f.cache.contains(cache.Key(cache.ProductKeyPrefix, product.ID.String())))
		f.productRepo.AssertExpectations(t)
	})
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	newPrice := 35.0

	t.Run("Failure - Another Vendor's Product", func(t *testing.T) {
		f := newProductFixture()

		product := activeProduct(30.0, 10)
		product.VendorID = ownerID
		f.productRepo.On("GetProductByID", ctx, product.ID).Return(product, nil).Once()

		claims := &models.Claims{UserID: uuid.New(), Role: models.RoleVendor}
		updated, err := f.service.UpdateProduct(ctx, claims, product.ID, &models.UpdateProductRequest{Price: &newPrice})

		assert.Nil(t, updated)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeForbidden, appErr.Code)
		f.productRepo.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
	})

	t.Run("Success - Admin May Update Any Product And Cache Is Invalidated", func(t *testing.T) {
		f := newProductFixture()

		product := activeProduct(30.0, 10)
		product.VendorID = ownerID
		key := cache.Key(cache.ProductKeyPrefix, product.ID.String())
		require.NoError(t, f.cache.Set(ctx, key, product, 0))

		f.productRepo.On("GetProductByID", ctx, product.ID).Return(product, nil).Once()
		f.productRepo.On("UpdateProduct", ctx, mock.MatchedBy(func(p *models.Product) bool {
			return p.ID == product.ID && p.Price == newPrice
		})).Return(nil).Once()

		claims := &models.Claims{UserID: uuid.New(), Role: models.RoleAdmin}
		updated, err := f.service.UpdateProduct(ctx, claims, product.ID, &models.UpdateProductRequest{Price: &newPrice})

		require.NoError(t, err)
		assert.Equal(t, newPrice, updated.Price)
		assert.False(t, f.cache.contains(key), "stale entry must be dropped")
		f.productRepo.AssertExpectations(t)
	})
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("Second Identical Query Is Served From Cache", func(t *testing.T) {
		f := newProductFixture()

		filter := &models.ProductFilter{Page: 1, PageSize: 20}
		listed := []*models.Product{activeProduct(30.0, 10)}
		f.productRepo.On("ListProducts", ctx, filter).Return(listed, 1, nil).Once()

		products, total, err := f.service.ListProducts(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, products, 1)

		// .Once() above makes a second repository call fail the test.
		products, total, err = f.service.ListProducts(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, products, 1)
		f.productRepo.AssertExpectations(t)
	})
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("Success - Decrease Sends A Negative Delta", func(t *testing.T) {
		f := newProductFixture()

		product := activeProduct(30.0, 10)
		product.VendorID = ownerID
		f.productRepo.On("GetProductByID", ctx, product.ID).Return(product, nil).Once()
		f.productRepo.On("AdjustStock", ctx, product.ID, -3).Return(7, nil).Once()

		claims := &models.Claims{UserID: ownerID, Role: models.RoleVendor}
		newStock, err := f.service.AdjustStock(ctx, claims, product.ID, &models.AdjustStockRequest{
			Quantity:  3,
			Operation: "decrease",
		})

		require.NoError(t, err)
		assert.Equal(t, 7, newStock)
		f.productRepo.AssertExpectations(t)
	})

	t.Run("Failure - Another Vendor's Product", func(t *testing.T) {
		f := newProductFixture()

		product := activeProduct(30.0, 10)
		product.VendorID = ownerID
		f.productRepo.On("GetProductByID", ctx, product.ID).Return(product, nil).Once()

		claims := &models.Claims{UserID: uuid.New(), Role: models.RoleVendor}
		_, err := f.service.AdjustStock(ctx, claims, product.ID, &models.AdjustStockRequest{
			Quantity:  3,
			Operation: "decrease",
		})

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeForbidden, appErr.Code)
		f.productRepo.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything)
	})
}
