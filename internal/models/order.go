package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

type Address struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// OrderItem is frozen at checkout; price and name never track later product
// edits.
type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
	UnitPrice  float64   `json:"unit_price"`
	TotalPrice float64   `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

type Order struct {
	ID              uuid.UUID     `json:"id"`
	CustomerID      uuid.UUID     `json:"customer_id"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentIntentID string        `json:"payment_intent_id,omitempty"`
	Items           []OrderItem   `json:"items"`
	Subtotal        float64       `json:"subtotal"`
	Tax             float64       `json:"tax"`
	Shipping        float64       `json:"shipping"`
	Discount        float64       `json:"discount"`
	GiftCardAmount  float64       `json:"gift_card_amount,omitempty"`
	Total           float64       `json:"total"`
	CouponCode      string        `json:"coupon_code,omitempty"`
	GiftCardCode    string        `json:"gift_card_code,omitempty"`
	ShippingAddress *Address      `json:"shipping_address"`
	TrackingNumber  string        `json:"tracking_number,omitempty"`
	Carrier         string        `json:"carrier,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type CreateOrderItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	ShippingAddress Address           `json:"shipping_address" validate:"required"`
	CouponCode      string            `json:"coupon_code,omitempty"`
	GiftCardCode    string            `json:"gift_card_code,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status         OrderStatus `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled refunded"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Carrier        string      `json:"carrier,omitempty"`
}
