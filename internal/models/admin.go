package models

import "github.com/google/uuid"

type OrderStatusCount struct {
	Status OrderStatus `json:"status"`
	Count  int         `json:"count"`
}

type TopProduct struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	UnitsSold int       `json:"units_sold"`
	Revenue   float64   `json:"revenue"`
}

type LowStockProduct struct {
	ProductID     uuid.UUID `json:"product_id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	StockQuantity int       `json:"stock_quantity"`
}

type DashboardStats struct {
	TotalRevenue    float64            `json:"total_revenue"`
	TotalOrders     int                `json:"total_orders"`
	OrdersByStatus  []OrderStatusCount `json:"orders_by_status"`
	TopProducts     []TopProduct       `json:"top_products"`
	LowStockAlerts  []LowStockProduct  `json:"low_stock_alerts"`
	TotalCustomers  int                `json:"total_customers"`
	PendingReviews  int                `json:"pending_reviews"`
}
