package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/google/uuid"
)

type CouponService struct {
	repo repository.CouponRepository
}

func NewCouponService(repo repository.CouponRepository) *CouponService {
	return &CouponService{repo: repo}
}

func (s *CouponService) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {

	existing, _ := s.repo.GetCouponByCode(ctx, req.Code)
	if existing != nil {
		return nil, appErrors.DuplicateEntryError("A coupon with this code already exists")
	}

	coupon := &models.Coupon{
		Code:                  strings.ToUpper(req.Code),
		Description:           req.Description,
		Type:                  req.Type,
		DiscountValue:         req.DiscountValue,
		MinimumOrderAmount:    req.MinimumOrderAmount,
		MaximumDiscountAmount: req.MaximumDiscountAmount,
		ValidFrom:             req.ValidFrom,
		ValidUntil:            req.ValidUntil,
		IsActive:              true,
		MaxUses:               req.MaxUses,
		MaxUsesPerUser:        req.MaxUsesPerUser,
		ApplicableUsers:       req.ApplicableUsers,
	}

	if err := s.repo.CreateCoupon(ctx, coupon); err != nil {
		return nil, appErrors.DatabaseError("Failed to create coupon").WithError(err)
	}

	return coupon, nil
}

func (s *CouponService) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, appErrors.NotFoundError("Coupon not found").WithError(err)
	}

	return coupon, nil
}

func (s *CouponService) UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest) (*models.Coupon, error) {

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, appErrors.NotFoundError("Coupon not found").WithError(err)
	}

	if req.Description != nil {
		coupon.Description = *req.Description
	}

	if req.DiscountValue != nil {
		coupon.DiscountValue = *req.DiscountValue
	}

	if req.MinimumOrderAmount != nil {
		coupon.MinimumOrderAmount = *req.MinimumOrderAmount
	}

	if req.MaximumDiscountAmount != nil {
		coupon.MaximumDiscountAmount = req.MaximumDiscountAmount
	}

	if req.ValidUntil != nil {
		coupon.ValidUntil = *req.ValidUntil
	}

	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	if req.MaxUses != nil {
		coupon.MaxUses = req.MaxUses
	}

	if req.MaxUsesPerUser != nil {
		coupon.MaxUsesPerUser = req.MaxUsesPerUser
	}

	if err := s.repo.UpdateCoupon(ctx, coupon); err != nil {
		return nil, appErrors.DatabaseError("Failed to update coupon").WithError(err)
	}

	return coupon, nil
}

func (s *CouponService) ListCoupons(ctx context.Context, page, size int) ([]*models.Coupon, int, error) {

	coupons, total, err := s.repo.ListCoupons(ctx, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list coupons").WithError(err)
	}

	return coupons, total, nil
}

// Validate runs the full eligibility chain against the given order amount.
// The checks run in a fixed order so the caller always gets the most specific
// rejection: existence, active flag, validity window, global cap, minimum
// order amount, per-user cap, and finally the applicable-users allowlist.
func (s *CouponService) Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount float64) (*models.CouponDiscount, error) {

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Coupon not found")
		}

		return nil, appErrors.DatabaseError("Failed to look up coupon").WithError(err)
	}

	if !coupon.IsActive {
		return nil, appErrors.BusinessRuleError("This coupon is no longer active")
	}

	now := time.Now()
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return nil, appErrors.BusinessRuleError("This coupon is outside its validity period")
	}

	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return nil, appErrors.BusinessRuleError("This coupon has reached its usage limit")
	}

	if orderAmount < coupon.MinimumOrderAmount {
		return nil, appErrors.BusinessRuleError("Order amount is below the coupon minimum")
	}

	if coupon.MaxUsesPerUser != nil {
		used, err := s.repo.CountUsageByUser(ctx, coupon.ID, userID)
		if err != nil {
			return nil, appErrors.DatabaseError("Failed to check coupon usage").WithError(err)
		}

		if used >= *coupon.MaxUsesPerUser {
			return nil, appErrors.BusinessRuleError("You have already used this coupon the maximum number of times")
		}
	}

	if len(coupon.ApplicableUsers) > 0 {
		eligible := false

		for _, id := range coupon.ApplicableUsers {
			if id == userID {
				eligible = true

				break
			}
		}

		if !eligible {
			return nil, appErrors.BusinessRuleError("This coupon is not available for your account")
		}
	}

	return &models.CouponDiscount{
		Code:         coupon.Code,
		Type:         coupon.Type,
		Amount:       calculateDiscount(coupon, orderAmount),
		FreeShipping: coupon.Type == models.CouponTypeFreeShipping,
	}, nil
}

// Redeem consumes one use of the coupon for the given order. The repository
// refuses the increment once the global cap is hit, so a race on the last use
// surfaces as a business-rule error here.
func (s *CouponService) Redeem(ctx context.Context, code string, userID, orderID uuid.UUID, amount float64) error {

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		return appErrors.NotFoundError("Coupon not found").WithError(err)
	}

	usage := &models.CouponUsage{
		CouponID: coupon.ID,
		UserID:   userID,
		OrderID:  orderID,
		Amount:   amount,
	}

	if err := s.repo.Redeem(ctx, usage); err != nil {
		if errors.Is(err, repository.ErrCouponExhausted) {
			return appErrors.BusinessRuleError("This coupon has reached its usage limit")
		}

		return appErrors.DatabaseError("Failed to redeem coupon").WithError(err)
	}

	return nil
}

func calculateDiscount(coupon *models.Coupon, orderAmount float64) float64 {
	switch coupon.Type {
	case models.CouponTypePercentage:
		discount := orderAmount * coupon.DiscountValue / 100
		if coupon.MaximumDiscountAmount != nil && discount > *coupon.MaximumDiscountAmount {
			discount = *coupon.MaximumDiscountAmount
		}

		return round2(discount)

	case models.CouponTypeFixed:
		return round2(math.Min(coupon.DiscountValue, orderAmount))

	case models.CouponTypeFreeShipping:
		// Shipping is waived by the pricing engine; the discount line stays zero.
		return 0
	}

	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
