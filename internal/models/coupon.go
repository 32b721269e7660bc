package models

import (
	"time"

	"github.com/google/uuid"
)

type CouponType string

const (
	CouponTypePercentage   CouponType = "percentage"
	CouponTypeFixed        CouponType = "fixed"
	CouponTypeFreeShipping CouponType = "free_shipping"
)

type Coupon struct {
	ID                    uuid.UUID   `json:"id"`
	Code                  string      `json:"code"`
	Description           string      `json:"description,omitempty"`
	Type                  CouponType  `json:"type"`
	DiscountValue         float64     `json:"discount_value"`
	MinimumOrderAmount    float64     `json:"minimum_order_amount"`
	MaximumDiscountAmount *float64    `json:"maximum_discount_amount,omitempty"`
	ValidFrom             time.Time   `json:"valid_from"`
	ValidUntil            time.Time   `json:"valid_until"`
	IsActive              bool        `json:"is_active"`
	MaxUses               *int        `json:"max_uses,omitempty"`
	MaxUsesPerUser        *int        `json:"max_uses_per_user,omitempty"`
	UsedCount             int         `json:"used_count"`
	ApplicableUsers       []uuid.UUID `json:"applicable_users,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// CouponUsage is the redemption history appended on every successful
// redemption.
type CouponUsage struct {
	ID       uuid.UUID `json:"id"`
	CouponID uuid.UUID `json:"coupon_id"`
	UserID   uuid.UUID `json:"user_id"`
	OrderID  uuid.UUID `json:"order_id"`
	Amount   float64   `json:"amount"`
	UsedAt   time.Time `json:"used_at"`
}

// CouponDiscount is the outcome of a successful validation. FreeShipping
// signals the caller to waive the shipping fee; Amount stays zero for that
// coupon type.
type CouponDiscount struct {
	Code         string     `json:"code"`
	Type         CouponType `json:"type"`
	Amount       float64    `json:"amount"`
	FreeShipping bool       `json:"free_shipping"`
}

type CreateCouponRequest struct {
	Code                  string      `json:"code" validate:"required,min=3,max=50,alphanum"`
	Description           string      `json:"description,omitempty"`
	Type                  CouponType  `json:"type" validate:"required,oneof=percentage fixed free_shipping"`
	DiscountValue         float64     `json:"discount_value" validate:"gte=0"`
	MinimumOrderAmount    float64     `json:"minimum_order_amount" validate:"gte=0"`
	MaximumDiscountAmount *float64    `json:"maximum_discount_amount,omitempty" validate:"omitempty,gt=0"`
	ValidFrom             time.Time   `json:"valid_from" validate:"required"`
	ValidUntil            time.Time   `json:"valid_until" validate:"required,gtfield=ValidFrom"`
	MaxUses               *int        `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
	MaxUsesPerUser        *int        `json:"max_uses_per_user,omitempty" validate:"omitempty,gt=0"`
	ApplicableUsers       []uuid.UUID `json:"applicable_users,omitempty"`
}

type UpdateCouponRequest struct {
	Description           *string    `json:"description,omitempty"`
	DiscountValue         *float64   `json:"discount_value,omitempty" validate:"omitempty,gte=0"`
	MinimumOrderAmount    *float64   `json:"minimum_order_amount,omitempty" validate:"omitempty,gte=0"`
	MaximumDiscountAmount *float64   `json:"maximum_discount_amount,omitempty" validate:"omitempty,gt=0"`
	ValidUntil            *time.Time `json:"valid_until,omitempty"`
	IsActive              *bool      `json:"is_active,omitempty"`
	MaxUses               *int       `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
	MaxUsesPerUser        *int       `json:"max_uses_per_user,omitempty" validate:"omitempty,gt=0"`
}
