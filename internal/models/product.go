package models

import (
	"time"

	"github.com/google/uuid"
)

type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusInactive     ProductStatus = "inactive"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Product struct {
	ID            uuid.UUID     `json:"id"`
	VendorID      uuid.UUID     `json:"vendor_id"`
	CategoryID    uuid.UUID     `json:"category_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Price         float64       `json:"price"`
	StockQuantity int           `json:"stock_quantity"`
	SKU           string        `json:"sku"`
	ImageURL      string        `json:"image_url,omitempty"`
	Status        ProductStatus `json:"status"`
	AverageRating float64       `json:"average_rating"`
	ReviewCount   int           `json:"review_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Category      *Category     `json:"category,omitempty"`
}

type CreateProductRequest struct {
	CategoryID    uuid.UUID `json:"category_id" validate:"required"`
	Name          string    `json:"name" validate:"required,min=3,max=200"`
	Description   string    `json:"description,omitempty"`
	Price         float64   `json:"price" validate:"required,gt=0"`
	StockQuantity int       `json:"stock_quantity" validate:"gte=0"`
	SKU           string    `json:"sku" validate:"required,min=3,max=50"`
	ImageURL      string    `json:"image_url,omitempty" validate:"omitempty,url"`
}

type UpdateProductRequest struct {
	CategoryID    *uuid.UUID     `json:"category_id,omitempty"`
	Name          *string        `json:"name,omitempty" validate:"omitempty,min=3,max=200"`
	Description   *string        `json:"description,omitempty"`
	Price         *float64       `json:"price,omitempty" validate:"omitempty,gt=0"`
	StockQuantity *int           `json:"stock_quantity,omitempty" validate:"omitempty,gte=0"`
	ImageURL      *string        `json:"image_url,omitempty" validate:"omitempty,url"`
	Status        *ProductStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive discontinued"`
}

type AdjustStockRequest struct {
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Operation string `json:"operation" validate:"required,oneof=increase decrease"`
}

// ProductFilter drives the catalog listing query. Zero values mean the
// predicate is not applied.
type ProductFilter struct {
	CategoryID  *uuid.UUID
	VendorID    *uuid.UUID
	MinPrice    *float64
	MaxPrice    *float64
	InStockOnly bool
	Search      string
	SortBy      string
	SortDesc    bool
	Page        int
	PageSize    int
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description,omitempty"`
}
