package service_test

import (
	"context"
	"time"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) CreateCart(ctx context.Context, cart *models.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockCartRepo) GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *mockCartRepo) UpdateCart(ctx context.Context, cart *models.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductRepo) ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]*models.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	args := m.Called(ctx, id, delta)

	return args.Int(0), args.Error(1)
}

type mockCouponRepo struct {
	mock.Mock
}

func (m *mockCouponRepo) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	return m.Called(ctx, coupon).Error(0)
}

func (m *mockCouponRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *mockCouponRepo) UpdateCoupon(ctx context.Context, coupon *models.Coupon) error {
	return m.Called(ctx, coupon).Error(0)
}

func (m *mockCouponRepo) ListCoupons(ctx context.Context, page, size int) ([]*models.Coupon, int, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]*models.Coupon), args.Int(1), args.Error(2)
}

func (m *mockCouponRepo) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, couponID, userID)

	return args.Int(0), args.Error(1)
}

func (m *mockCouponRepo) Redeem(ctx context.Context, usage *models.CouponUsage) error {
	return m.Called(ctx, usage).Error(0)
}

type mockGiftCardRepo struct {
	mock.Mock
}

func (m *mockGiftCardRepo) CreateGiftCard(ctx context.Context, card *models.GiftCard) error {
	return m.Called(ctx, card).Error(0)
}

func (m *mockGiftCardRepo) GetGiftCardByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.GiftCard), args.Error(1)
}

func (m *mockGiftCardRepo) ListGiftCards(ctx context.Context, page, size int) ([]*models.GiftCard, int, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]*models.GiftCard), args.Int(1), args.Error(2)
}

func (m *mockGiftCardRepo) UpdateStatus(ctx context.Context, code string, status models.GiftCardStatus) error {
	return m.Called(ctx, code, status).Error(0)
}

func (m *mockGiftCardRepo) Redeem(ctx context.Context, usage *models.GiftCardUsage) error {
	return m.Called(ctx, usage).Error(0)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepo) GetOrderById(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, page, size int) ([]models.Order, int, error) {
	args := m.Called(ctx, customerID, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]models.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	return m.Called(ctx, orderID, intentID).Error(0)
}

func (m *mockOrderRepo) UpdatePaymentStatusByIntent(ctx context.Context, intentID string, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) (uuid.UUID, error) {
	args := m.Called(ctx, intentID, paymentStatus, orderStatus)

	return args.Get(0).(uuid.UUID), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetUserById(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.User), args.Error(1)
}

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNotificationRepo) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, sendErr string) error {
	return m.Called(ctx, id, status, sendErr).Error(0)
}

func (m *mockNotificationRepo) ListNotifications(ctx context.Context, page, size int) ([]*models.Notification, int, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]*models.Notification), args.Int(1), args.Error(2)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) CreateReview(ctx context.Context, review *models.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *mockReviewRepo) GetReviewByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *mockReviewRepo) ListReviewsByProduct(ctx context.Context, productID uuid.UUID, approvedOnly bool, page, size int) ([]*models.Review, int, error) {
	args := m.Called(ctx, productID, approvedOnly, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}

	return args.Get(0).([]*models.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) ModerateReview(ctx context.Context, id uuid.UUID, approved, flagged *bool) (*models.Review, error) {
	args := m.Called(ctx, id, approved, flagged)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *mockReviewRepo) DeleteReview(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReviewRepo) RefreshProductRating(ctx context.Context, productID uuid.UUID) error {
	return m.Called(ctx, productID).Error(0)
}

type mockWishlistRepo struct {
	mock.Mock
}

func (m *mockWishlistRepo) AddToWishlist(ctx context.Context, item *models.WishlistItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockWishlistRepo) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *mockWishlistRepo) ListWishlist(ctx context.Context, userID uuid.UUID) ([]*models.WishlistItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WishlistItem), args.Error(1)
}

func (m *mockWishlistRepo) AddToComparison(ctx context.Context, item *models.ComparisonItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockWishlistRepo) RemoveFromComparison(ctx context.Context, userID, productID uuid.UUID) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *mockWishlistRepo) ListComparison(ctx context.Context, userID uuid.UUID) ([]*models.ComparisonItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ComparisonItem), args.Error(1)
}

func (m *mockWishlistRepo) CountComparison(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)

	return args.Int(0), args.Error(1)
}

type mockCategoryRepo struct {
	mock.Mock
}

func (m *mockCategoryRepo) CreateCategory(ctx context.Context, category *models.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *mockCategoryRepo) GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *mockCategoryRepo) ListCategories(ctx context.Context) ([]*models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Category), args.Error(1)
}

func (m *mockCategoryRepo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockRateLimitRepo struct {
	mock.Mock
}

func (m *mockRateLimitRepo) CheckLoginRateLimit(ctx context.Context, username string) (bool, int, int, error) {
	args := m.Called(ctx, username)

	return args.Bool(0), args.Int(1), args.Int(2), args.Error(3)
}

type mockEmailService struct {
	mock.Mock
}

func (m *mockEmailService) Send(ctx context.Context, req *models.EmailNotificationRequest) error {
	return m.Called(ctx, req).Error(0)
}

// noopCache satisfies cache.Cache without remembering anything, so service
// tests exercise the repository path.
type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string, value any) (bool, error) { return false, nil }

func (noopCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

func (noopCache) Delete(ctx context.Context, key string) error            { return nil }
func (noopCache) DeleteByPrefix(ctx context.Context, prefix string) error { return nil }
func (noopCache) Close() error                                            { return nil }
