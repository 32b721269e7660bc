package service

import (
	"context"

	"github.com/dentalmart/marketplace/internal/config"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
)

const topProductsLimit = 10

type AdminService struct {
	stats   repository.StatsRepository
	pricing *config.PricingConfig
}

func NewAdminService(stats repository.StatsRepository, pricing *config.PricingConfig) *AdminService {
	return &AdminService{stats: stats, pricing: pricing}
}

// DashboardStats assembles the admin overview from aggregate queries; the
// database does the reducing, not this process.
func (s *AdminService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {

	revenue, orderCount, err := s.stats.TotalRevenue(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to aggregate revenue").WithError(err)
	}

	byStatus, err := s.stats.OrdersByStatus(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to aggregate order statuses").WithError(err)
	}

	topProducts, err := s.stats.TopProducts(ctx, topProductsLimit)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to aggregate top products").WithError(err)
	}

	lowStock, err := s.stats.LowStockProducts(ctx, s.pricing.LowStockThreshold)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list low stock products").WithError(err)
	}

	customers, err := s.stats.TotalCustomers(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to count customers").WithError(err)
	}

	pendingReviews, err := s.stats.PendingReviews(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to count pending reviews").WithError(err)
	}

	return &models.DashboardStats{
		TotalRevenue:   revenue,
		TotalOrders:    orderCount,
		OrdersByStatus: byStatus,
		TopProducts:    topProducts,
		LowStockAlerts: lowStock,
		TotalCustomers: customers,
		PendingReviews: pendingReviews,
	}, nil
}
