package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
)

// StatsRepository serves the admin dashboard with aggregate queries; nothing
// here scans collections in process memory.
type StatsRepository interface {
	TotalRevenue(ctx context.Context) (float64, int, error)
	OrdersByStatus(ctx context.Context) ([]models.OrderStatusCount, error)
	TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error)
	LowStockProducts(ctx context.Context, threshold int) ([]models.LowStockProduct, error)
	TotalCustomers(ctx context.Context) (int, error)
	PendingReviews(ctx context.Context) (int, error)
}

type statsRepository struct {
	DB *sql.DB
}

func NewStatsRepo(db *sql.DB) StatsRepository {
	return &statsRepository{DB: db}
}

func (r *statsRepository) TotalRevenue(ctx context.Context) (float64, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var revenue float64

	var count int

	query := `
		SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status NOT IN ($1, $2)
	`

	err := r.DB.QueryRowContext(dbCtx, query, models.OrderStatusCancelled, models.OrderStatusRefunded).
		Scan(&revenue, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregating revenue: %w", err)
	}

	return revenue, count, nil
}

func (r *statsRepository) OrdersByStatus(ctx context.Context) ([]models.OrderStatusCount, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	rows, err := r.DB.QueryContext(dbCtx, `SELECT status, COUNT(*) FROM orders GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("aggregating order statuses: %w", err)
	}

	defer rows.Close()

	var counts []models.OrderStatusCount

	for rows.Next() {
		var c models.OrderStatusCount

		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}

func (r *statsRepository) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT oi.product_id, oi.name, SUM(oi.quantity) AS units, SUM(oi.total_price) AS revenue
		FROM order_items oi
		JOIN orders o ON oi.order_id = o.id
		WHERE o.status NOT IN ($1, $2)
		GROUP BY oi.product_id, oi.name
		ORDER BY units DESC
		LIMIT $3
	`

	rows, err := r.DB.QueryContext(dbCtx, query, models.OrderStatusCancelled, models.OrderStatusRefunded, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregating top products: %w", err)
	}

	defer rows.Close()

	var products []models.TopProduct

	for rows.Next() {
		var p models.TopProduct

		if err := rows.Scan(&p.ProductID, &p.Name, &p.UnitsSold, &p.Revenue); err != nil {
			return nil, err
		}

		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *statsRepository) LowStockProducts(ctx context.Context, threshold int) ([]models.LowStockProduct, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, sku, stock_quantity
		FROM products
		WHERE stock_quantity <= $1 AND status = $2
		ORDER BY stock_quantity, name
	`

	rows, err := r.DB.QueryContext(dbCtx, query, threshold, models.ProductStatusActive)
	if err != nil {
		return nil, fmt.Errorf("listing low stock products: %w", err)
	}

	defer rows.Close()

	var products []models.LowStockProduct

	for rows.Next() {
		var p models.LowStockProduct

		if err := rows.Scan(&p.ProductID, &p.Name, &p.SKU, &p.StockQuantity); err != nil {
			return nil, err
		}

		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *statsRepository) TotalCustomers(ctx context.Context) (int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var count int

	err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM users WHERE role = $1`, models.RoleCustomer).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting customers: %w", err)
	}

	return count, nil
}

func (r *statsRepository) PendingReviews(ctx context.Context) (int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var count int

	err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM reviews WHERE is_approved = FALSE AND is_flagged = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending reviews: %w", err)
	}

	return count, nil
}
