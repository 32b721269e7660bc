package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	"github.com/dentalmart/marketplace/internal/cache"
	"github.com/dentalmart/marketplace/internal/config"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/realtime"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/google/uuid"
)

type ProductService struct {
	repo         repository.ProductRepository
	categoryRepo repository.CategoryRepository
	cache        cache.Cache
	cacheCfg     *config.CacheConfig
	pricing      *config.PricingConfig
	hub          *realtime.Hub
}

func NewProductService(repo repository.ProductRepository, categoryRepo repository.CategoryRepository, productCache cache.Cache, cacheCfg *config.CacheConfig, pricing *config.PricingConfig, hub *realtime.Hub) *ProductService {
	return &ProductService{
		repo:         repo,
		categoryRepo: categoryRepo,
		cache:        productCache,
		cacheCfg:     cacheCfg,
		pricing:      pricing,
		hub:          hub,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, vendorID uuid.UUID, req *models.CreateProductRequest) (*models.Product, error) {

	if _, err := s.categoryRepo.GetCategoryByID(ctx, req.CategoryID); err != nil {
		return nil, appErrors.NotFoundError("Category not found").WithError(err)
	}

	product := &models.Product{
		VendorID:      vendorID,
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		SKU:           req.SKU,
		ImageURL:      req.ImageURL,
		Status:        models.ProductStatusActive,
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, appErrors.DatabaseError("Failed to create product").WithError(err)
	}

	s.invalidateListings(ctx)

	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {

	cached := &models.Product{}
	if hit, err := s.cache.Get(ctx, cache.Key(cache.ProductKeyPrefix, id.String()), cached); err == nil && hit {
		return cached, nil
	}

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, appErrors.NotFoundError("Product not found").WithError(err)
	}

	if err := s.cache.Set(ctx, cache.Key(cache.ProductKeyPrefix, id.String()), product, 0); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to cache product", slog.Any("error", err))
	}

	return product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, claims *models.Claims, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error) {

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, appErrors.NotFoundError("Product not found").WithError(err)
	}

	if !claims.IsAdmin() && product.VendorID != claims.UserID {
		return nil, appErrors.ForbiddenError("You can only manage your own products")
	}

	if req.CategoryID != nil {
		if _, err := s.categoryRepo.GetCategoryByID(ctx, *req.CategoryID); err != nil {
			return nil, appErrors.NotFoundError("Category not found").WithError(err)
		}

		product.CategoryID = *req.CategoryID
	}

	if req.Name != nil {
		product.Name = *req.Name
	}

	if req.Description != nil {
		product.Description = *req.Description
	}

	if req.Price != nil {
		product.Price = *req.Price
	}

	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
	}

	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}

	if req.Status != nil {
		product.Status = *req.Status
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, appErrors.DatabaseError("Failed to update product").WithError(err)
	}

	s.invalidateProduct(ctx, id)

	return product, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, claims *models.Claims, id uuid.UUID) error {

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return appErrors.NotFoundError("Product not found").WithError(err)
	}

	if !claims.IsAdmin() && product.VendorID != claims.UserID {
		return appErrors.ForbiddenError("You can only manage your own products")
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return appErrors.DatabaseError("Failed to delete product").WithError(err)
	}

	s.invalidateProduct(ctx, id)

	return nil
}

type productListing struct {
	Products []*models.Product `json:"products"`
	Total    int               `json:"total"`
}

func (s *ProductService) ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, int, error) {

	key := listingKey(filter)

	cached := &productListing{}
	if hit, err := s.cache.Get(ctx, key, cached); err == nil && hit {
		return cached.Products, cached.Total, nil
	}

	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list products").WithError(err)
	}

	listing := &productListing{Products: products, Total: total}
	if err := s.cache.Set(ctx, key, listing, s.cacheCfg.ListingTTL); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to cache product listing", slog.Any("error", err))
	}

	return products, total, nil
}

// AdjustStock applies a manual stock correction and pushes the resulting
// quantity to connected clients. A drop to or below the low-stock threshold
// additionally raises a low-stock alert.
func (s *ProductService) AdjustStock(ctx context.Context, claims *models.Claims, id uuid.UUID, req *models.AdjustStockRequest) (int, error) {

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return 0, appErrors.NotFoundError("Product not found").WithError(err)
	}

	if !claims.IsAdmin() && product.VendorID != claims.UserID {
		return 0, appErrors.ForbiddenError("You can only manage your own products")
	}

	delta := req.Quantity
	if req.Operation == "decrease" {
		delta = -delta
	}

	newStock, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, appErrors.DatabaseError("Failed to adjust stock").WithError(err)
	}

	s.invalidateProduct(ctx, id)

	s.hub.Broadcast(realtime.Event{
		Type: realtime.EventStockChange,
		Payload: map[string]any{
			"product_id":     id,
			"stock_quantity": newStock,
		},
	})

	if newStock <= s.pricing.LowStockThreshold {
		s.hub.Broadcast(realtime.Event{
			Type: realtime.EventLowStock,
			Payload: map[string]any{
				"product_id":     id,
				"name":           product.Name,
				"sku":            product.SKU,
				"stock_quantity": newStock,
			},
		})
	}

	return newStock, nil
}

func (s *ProductService) CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {

	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
	}

	if err := s.categoryRepo.CreateCategory(ctx, category); err != nil {
		return nil, appErrors.DatabaseError("Failed to create category").WithError(err)
	}

	return category, nil
}

func (s *ProductService) ListCategories(ctx context.Context) ([]*models.Category, error) {

	categories, err := s.categoryRepo.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list categories").WithError(err)
	}

	return categories, nil
}

func (s *ProductService) DeleteCategory(ctx context.Context, id uuid.UUID) error {

	if err := s.categoryRepo.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Category not found")
		}

		return appErrors.DatabaseError("Failed to delete category").WithError(err)
	}

	return nil
}

func (s *ProductService) invalidateProduct(ctx context.Context, id uuid.UUID) {

	logger := middleware.LoggerFromContext(ctx)

	if err := s.cache.Delete(ctx, cache.Key(cache.ProductKeyPrefix, id.String())); err != nil {
		logger.Warn("Failed to invalidate product cache", slog.Any("error", err))
	}

	s.invalidateListings(ctx)
}

func (s *ProductService) invalidateListings(ctx context.Context) {
	if err := s.cache.DeleteByPrefix(ctx, cache.ListingKeyPrefix); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to invalidate listing cache", slog.Any("error", err))
	}
}

func listingKey(filter *models.ProductFilter) string {

	category := ""
	if filter.CategoryID != nil {
		category = filter.CategoryID.String()
	}

	vendor := ""
	if filter.VendorID != nil {
		vendor = filter.VendorID.String()
	}

	minPrice, maxPrice := "", ""
	if filter.MinPrice != nil {
		minPrice = fmt.Sprintf("%.2f", *filter.MinPrice)
	}

	if filter.MaxPrice != nil {
		maxPrice = fmt.Sprintf("%.2f", *filter.MaxPrice)
	}

	id := fmt.Sprintf("%s|%s|%s|%s|%t|%s|%s|%t|%d|%d",
		category, vendor, minPrice, maxPrice, filter.InStockOnly,
		filter.Search, filter.SortBy, filter.SortDesc, filter.Page, filter.PageSize)

	return cache.Key(cache.ListingKeyPrefix, id)
}
