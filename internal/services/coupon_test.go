package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	service "github.com/dentalmart/marketplace/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func activeCoupon() *models.Coupon {
	return &models.Coupon{
		ID:            uuid.New(),
		Code:          "SAVE20",
		Type:          models.CouponTypePercentage,
		DiscountValue: 20,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		IsActive:      true,
	}
}

func TestValidateCoupon(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success - Percentage Discount", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(activeCoupon(), nil).Once()

		discount, err := couponService.Validate(ctx, "SAVE20", userID, 50.0)

		assert.NoError(t, err)
		assert.NotNil(t, discount)
		assert.Equal(t, 10.0, discount.Amount) // 20% of 50
		assert.False(t, discount.FreeShipping)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success - Percentage Clamped To Maximum", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		maxDiscount := 15.0
		coupon := activeCoupon()
		coupon.MaximumDiscountAmount = &maxDiscount
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		discount, err := couponService.Validate(ctx, "SAVE20", userID, 200.0)

		assert.NoError(t, err)
		assert.Equal(t, 15.0, discount.Amount) // 20% of 200 would be 40
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success - Fixed Discount Capped At Order Amount", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.Type = models.CouponTypeFixed
		coupon.DiscountValue = 50
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		discount, err := couponService.Validate(ctx, "SAVE20", userID, 30.0)

		assert.NoError(t, err)
		assert.Equal(t, 30.0, discount.Amount)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success - Free Shipping Has Zero Discount Amount", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.Type = models.CouponTypeFreeShipping
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		discount, err := couponService.Validate(ctx, "SAVE20", userID, 30.0)

		assert.NoError(t, err)
		assert.Equal(t, 0.0, discount.Amount)
		assert.True(t, discount.FreeShipping)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Coupon Not Found", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		mockRepo.On("GetCouponByCode", ctx, "NOPE").Return(nil, sql.ErrNoRows).Once()

		discount, err := couponService.Validate(ctx, "NOPE", userID, 50.0)

		assert.Nil(t, discount)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Inactive", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.IsActive = false
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		_, err := couponService.Validate(ctx, "SAVE20", userID, 50.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Outside Validity Window", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.ValidUntil = time.Now().Add(-time.Minute)
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		_, err := couponService.Validate(ctx, "SAVE20", userID, 50.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		assert.Contains(t, appErr.Message, "validity period")
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Global Usage Cap Reached", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		maxUses := 100
		coupon := activeCoupon()
		coupon.MaxUses = &maxUses
		coupon.UsedCount = 100
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		_, err := couponService.Validate(ctx, "SAVE20", userID, 50.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		assert.Contains(t, appErr.Message, "usage limit")
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Below Minimum Order Amount", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.MinimumOrderAmount = 100
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		// One cent short.
		_, err := couponService.Validate(ctx, "SAVE20", userID, 99.99)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		assert.Contains(t, appErr.Message, "minimum")
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success - Exactly At Minimum Order Amount", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.MinimumOrderAmount = 100
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		discount, err := couponService.Validate(ctx, "SAVE20", userID, 100.0)

		assert.NoError(t, err)
		assert.Equal(t, 20.0, discount.Amount)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Per-User Cap Reached", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		perUser := 1
		coupon := activeCoupon()
		coupon.MaxUsesPerUser = &perUser
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()
		mockRepo.On("CountUsageByUser", ctx, coupon.ID, userID).Return(1, nil).Once()

		_, err := couponService.Validate(ctx, "SAVE20", userID, 50.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Not On Allowlist", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.ApplicableUsers = []uuid.UUID{uuid.New()}
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		_, err := couponService.Validate(ctx, "SAVE20", userID, 50.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Inactive Rejection Wins Over Minimum Amount", func(t *testing.T) {
		// Both checks would fail; the active check runs first.
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		coupon.IsActive = false
		coupon.MinimumOrderAmount = 100
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()

		_, err := couponService.Validate(ctx, "SAVE20", userID, 10.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Contains(t, appErr.Message, "no longer active")
		mockRepo.AssertExpectations(t)
	})
}

func TestCreateCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Code Uppercased", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		mockRepo.On("GetCouponByCode", ctx, "save20").Return(nil, sql.ErrNoRows).Once()
		mockRepo.On("CreateCoupon", ctx, mock.MatchedBy(func(c *models.Coupon) bool {
			return c.Code == "SAVE20" && c.IsActive
		})).Return(nil).Once()

		coupon, err := couponService.CreateCoupon(ctx, &models.CreateCouponRequest{
			Code:          "save20",
			Type:          models.CouponTypePercentage,
			DiscountValue: 20,
			ValidFrom:     time.Now(),
			ValidUntil:    time.Now().Add(24 * time.Hour),
		})

		assert.NoError(t, err)
		assert.Equal(t, "SAVE20", coupon.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Duplicate Code", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(activeCoupon(), nil).Once()

		coupon, err := couponService.CreateCoupon(ctx, &models.CreateCouponRequest{
			Code: "SAVE20",
			Type: models.CouponTypePercentage,
		})

		assert.Nil(t, coupon)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDuplicateEntry, appErr.Code)
		mockRepo.AssertNotCalled(t, "CreateCoupon", mock.Anything, mock.Anything)
	})
}

func TestRedeemCoupon(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		coupon := activeCoupon()
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(coupon, nil).Once()
		mockRepo.On("Redeem", ctx, mock.MatchedBy(func(u *models.CouponUsage) bool {
			return u.CouponID == coupon.ID && u.UserID == userID && u.OrderID == orderID && u.Amount == 10.0
		})).Return(nil).Once()

		err := couponService.Redeem(ctx, "SAVE20", userID, orderID, 10.0)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Exhausted By Concurrent Redemption", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(activeCoupon(), nil).Once()
		mockRepo.On("Redeem", ctx, mock.AnythingOfType("*models.CouponUsage")).Return(repository.ErrCouponExhausted).Once()

		err := couponService.Redeem(ctx, "SAVE20", userID, orderID, 10.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		mockRepo := new(mockCouponRepo)
		couponService := service.NewCouponService(mockRepo)

		dbErr := errors.New("connection reset")
		mockRepo.On("GetCouponByCode", ctx, "SAVE20").Return(activeCoupon(), nil).Once()
		mockRepo.On("Redeem", ctx, mock.AnythingOfType("*models.CouponUsage")).Return(dbErr).Once()

		err := couponService.Redeem(ctx, "SAVE20", userID, orderID, 10.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDatabaseError, appErr.Code)
		assert.ErrorIs(t, err, dbErr)
		mockRepo.AssertExpectations(t)
	})
}
