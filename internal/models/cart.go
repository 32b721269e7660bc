package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem carries a snapshot of the product taken at add time. The snapshot
// is deliberately not refreshed when the product changes later.
type CartItem struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"image_url,omitempty"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	TotalPrice float64   `json:"total_price"`
}

type Cart struct {
	ID           uuid.UUID           `json:"id"`
	UserID       uuid.UUID           `json:"user_id"`
	Items        map[string]CartItem `json:"items"`
	Subtotal     float64             `json:"subtotal"`
	Tax          float64             `json:"tax"`
	Shipping     float64             `json:"shipping"`
	Discount     float64             `json:"discount"`
	Total        float64             `json:"total"`
	CouponCode   string              `json:"coupon_code,omitempty"`
	FreeShipping bool                `json:"free_shipping,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type UpdateQuantityRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=0"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,min=3,max=50"`
}

type GuestCartItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type MergeGuestCartRequest struct {
	Items []GuestCartItem `json:"items" validate:"required,min=1,dive"`
}
