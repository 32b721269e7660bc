package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	"github.com/dentalmart/marketplace/internal/cache"
	"github.com/dentalmart/marketplace/internal/config"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/google/uuid"
)

// CartService owns all cart arithmetic. Every mutation funnels through
// recomputeTotals, which is the only place subtotal, tax, shipping, discount
// and total are derived.
type CartService struct {
	repo        repository.CartRepository
	productRepo repository.ProductRepository
	coupons     *CouponService
	pricing     *config.PricingConfig
	cache       cache.Cache
}

func NewCartService(repo repository.CartRepository, productRepo repository.ProductRepository, coupons *CouponService, pricing *config.PricingConfig, cartCache cache.Cache) *CartService {
	return &CartService{
		repo:        repo,
		productRepo: productRepo,
		coupons:     coupons,
		pricing:     pricing,
		cache:       cartCache,
	}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	cached := &models.Cart{}
	if hit, err := s.cache.Get(ctx, cache.Key(cache.CartKeyPrefix, userID.String()), cached); err == nil && hit {
		return cached, nil
	}

	cart, err := s.repo.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.createCart(ctx, userID)
		}

		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	s.cacheCart(ctx, cart)

	return cart, nil
}

func (s *CartService) createCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	cart := &models.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Items:     make(map[string]models.CartItem),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to create cart").WithError(err)
	}

	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error) {

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, appErrors.NotFoundError("Product not found").WithError(err)
	}

	if product.Status != models.ProductStatusActive {
		return nil, appErrors.BusinessRuleError("This product is not available for purchase")
	}

	key := req.ProductID.String()

	quantity := req.Quantity
	if existing, ok := cart.Items[key]; ok {
		quantity += existing.Quantity
	}

	if quantity > product.StockQuantity {
		return nil, appErrors.InsufficientStockError("Not enough stock for the requested quantity")
	}

	if existing, ok := cart.Items[key]; ok {
		// Increment only; the original price/name snapshot stays as taken at
		// first add.
		existing.Quantity = quantity
		existing.TotalPrice = existing.UnitPrice * float64(quantity)
		cart.Items[key] = existing
	} else {
		cart.Items[key] = models.CartItem{
			ProductID:  product.ID,
			Name:       product.Name,
			ImageURL:   product.ImageURL,
			Quantity:   req.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: product.Price * float64(req.Quantity),
		}
	}

	return s.saveCart(ctx, cart)
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, req *models.UpdateQuantityRequest) (*models.Cart, error) {

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := req.ProductID.String()

	item, exists := cart.Items[key]
	if !exists {
		return nil, appErrors.BadRequestError("Item not found in the cart")
	}

	if req.Quantity == 0 {
		delete(cart.Items, key)
	} else {
		product, err := s.productRepo.GetProductByID(ctx, req.ProductID)
		if err != nil {
			return nil, appErrors.NotFoundError("Product not found").WithError(err)
		}

		if req.Quantity > product.StockQuantity {
			return nil, appErrors.InsufficientStockError("Not enough stock for the requested quantity")
		}

		item.Quantity = req.Quantity
		item.TotalPrice = item.UnitPrice * float64(req.Quantity)
		cart.Items[key] = item
	}

	return s.saveCart(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := productID.String()

	if _, exists := cart.Items[key]; !exists {
		return nil, appErrors.BadRequestError("Item not found in the cart")
	}

	delete(cart.Items, key)

	return s.saveCart(ctx, cart)
}

// ClearCart empties the cart in place; the row itself is never deleted.
func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Items = make(map[string]models.CartItem)
	cart.CouponCode = ""
	cart.FreeShipping = false

	return s.saveCart(ctx, cart)
}

// ApplyCoupon validates the code against the current subtotal; a rejection
// leaves the cart untouched.
func (s *CartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, req *models.ApplyCouponRequest) (*models.Cart, error) {

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	subtotal := s.subtotal(cart)

	discount, err := s.coupons.Validate(ctx, req.Code, userID, subtotal)
	if err != nil {
		return nil, err
	}

	cart.CouponCode = discount.Code
	cart.FreeShipping = discount.FreeShipping

	return s.saveCart(ctx, cart)
}

func (s *CartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.CouponCode = ""
	cart.FreeShipping = false

	return s.saveCart(ctx, cart)
}

// MergeGuestCart folds a pre-login guest cart into the user's server cart.
// Quantities add up for products already present; unknown or inactive
// products are skipped rather than failing the whole merge.
func (s *CartService) MergeGuestCart(ctx context.Context, userID uuid.UUID, req *models.MergeGuestCartRequest) (*models.Cart, error) {

	logger := middleware.LoggerFromContext(ctx)

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, guestItem := range req.Items {

		product, err := s.productRepo.GetProductByID(ctx, guestItem.ProductID)
		if err != nil || product.Status != models.ProductStatusActive {
			logger.Warn("Skipping unavailable product during cart merge",
				slog.String("product_id", guestItem.ProductID.String()))

			continue
		}

		key := guestItem.ProductID.String()

		if existing, ok := cart.Items[key]; ok {
			existing.Quantity += guestItem.Quantity
			existing.TotalPrice = existing.UnitPrice * float64(existing.Quantity)
			cart.Items[key] = existing
		} else {
			cart.Items[key] = models.CartItem{
				ProductID:  product.ID,
				Name:       product.Name,
				ImageURL:   product.ImageURL,
				Quantity:   guestItem.Quantity,
				UnitPrice:  product.Price,
				TotalPrice: product.Price * float64(guestItem.Quantity),
			}
		}
	}

	return s.saveCart(ctx, cart)
}

func (s *CartService) saveCart(ctx context.Context, cart *models.Cart) (*models.Cart, error) {

	s.recomputeTotals(ctx, cart)

	cart.UpdatedAt = time.Now()

	if err := s.repo.UpdateCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to update cart").WithError(err)
	}

	s.cacheCart(ctx, cart)

	return cart, nil
}

// recomputeTotals derives every money field on the cart:
//
//	subtotal = Σ(unit price × quantity)
//	tax      = subtotal × tax rate
//	shipping = 0 once subtotal reaches the free-shipping threshold, or when a
//	           free-shipping coupon is applied; a flat fee otherwise
//	total    = subtotal + tax + shipping − discount
//
// all rounded to two decimals. An applied coupon is revalidated against the
// new subtotal and silently dropped if it no longer qualifies.
func (s *CartService) recomputeTotals(ctx context.Context, cart *models.Cart) {

	cart.Subtotal = s.subtotal(cart)

	cart.Discount = 0

	if cart.CouponCode != "" {
		discount, err := s.coupons.Validate(ctx, cart.CouponCode, cart.UserID, cart.Subtotal)
		if err != nil {
			middleware.LoggerFromContext(ctx).Info("Dropping coupon that no longer qualifies",
				slog.String("coupon_code", cart.CouponCode),
				slog.String("reason", err.Error()))

			cart.CouponCode = ""
			cart.FreeShipping = false
		} else {
			cart.Discount = discount.Amount
			cart.FreeShipping = discount.FreeShipping
		}
	}

	cart.Tax = round2(cart.Subtotal * s.pricing.TaxRate)

	switch {
	case len(cart.Items) == 0:
		cart.Shipping = 0
	case cart.FreeShipping || cart.Subtotal >= s.pricing.FreeShippingThreshold:
		cart.Shipping = 0
	default:
		cart.Shipping = s.pricing.FlatShippingFee
	}

	cart.Total = round2(cart.Subtotal + cart.Tax + cart.Shipping - cart.Discount)
}

func (s *CartService) subtotal(cart *models.Cart) float64 {

	var sum float64

	for _, item := range cart.Items {
		sum += item.TotalPrice
	}

	return round2(sum)
}

func (s *CartService) cacheCart(ctx context.Context, cart *models.Cart) {
	if err := s.cache.Set(ctx, cache.Key(cache.CartKeyPrefix, cart.UserID.String()), cart, 0); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to cache cart", slog.Any("error", err))
	}
}
