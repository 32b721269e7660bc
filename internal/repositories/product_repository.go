package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
	"github.com/google/uuid"
)

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, int, error)
	// AdjustStock applies a signed delta, clamped at zero, and returns the
	// resulting quantity. Single statement, so concurrent adjustments
	// serialize in the database.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error)
}

type productRepository struct {
	DB *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepository {
	return &productRepository{DB: db}
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO products (vendor_id, category_id, name, description, price, stock_quantity, sku, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		product.VendorID, product.CategoryID, product.Name, product.Description,
		product.Price, product.StockQuantity, product.SKU, product.ImageURL, product.Status).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	product := &models.Product{}
	category := &models.Category{}

	query := `
		SELECT p.id, p.vendor_id, p.category_id, p.name, p.description, p.price,
		       p.stock_quantity, p.sku, p.image_url, p.status, p.average_rating, p.review_count,
		       p.created_at, p.updated_at,
		       c.id, c.name, c.description
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.id = $1`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&product.ID, &product.VendorID, &product.CategoryID, &product.Name, &product.Description,
		&product.Price, &product.StockQuantity, &product.SKU, &product.ImageURL, &product.Status,
		&product.AverageRating, &product.ReviewCount, &product.CreatedAt, &product.UpdatedAt,
		&category.ID, &category.Name, &category.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	product.Category = category

	return product, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET category_id = $1, name = $2, description = $3, price = $4,
		    stock_quantity = $5, image_url = $6, status = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		product.CategoryID, product.Name, product.Description, product.Price,
		product.StockQuantity, product.ImageURL, product.Status, product.ID).
		Scan(&product.UpdatedAt)
}

func (r *productRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Sortable columns for the listing path. Anything else falls back to name.
var productSortColumns = map[string]string{
	"name":       "p.name",
	"price":      "p.price",
	"rating":     "p.average_rating",
	"created_at": "p.created_at",
	"stock":      "p.stock_quantity",
}

func (r *productRepository) ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	conditions := []string{"1=1"}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)

		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryID != nil {
		conditions = append(conditions, "p.category_id = "+arg(*filter.CategoryID))
	}

	if filter.VendorID != nil {
		conditions = append(conditions, "p.vendor_id = "+arg(*filter.VendorID))
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, "p.price >= "+arg(*filter.MinPrice))
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, "p.price <= "+arg(*filter.MaxPrice))
	}

	if filter.InStockOnly {
		conditions = append(conditions, "p.stock_quantity > 0")
	}

	if filter.Search != "" {
		placeholder := arg("%" + filter.Search + "%")
		conditions = append(conditions, "(p.name ILIKE "+placeholder+" OR p.sku ILIKE "+placeholder+")")
	}

	where := strings.Join(conditions, " AND ")

	var total int

	countQuery := "SELECT COUNT(*) FROM products p WHERE " + where

	if err := r.DB.QueryRowContext(dbCtx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	sortColumn, ok := productSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "p.name"
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	offset := (filter.Page - 1) * filter.PageSize

	query := fmt.Sprintf(`
		SELECT p.id, p.vendor_id, p.category_id, p.name, p.description, p.price,
		       p.stock_quantity, p.sku, p.image_url, p.status, p.average_rating, p.review_count,
		       p.created_at, p.updated_at
		FROM products p
		WHERE %s
		ORDER BY %s %s, p.id
		LIMIT %s OFFSET %s`, where, sortColumn, direction, arg(filter.PageSize), arg(offset))

	rows, err := r.DB.QueryContext(dbCtx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}

	defer rows.Close()

	var products []*models.Product

	for rows.Next() {
		product := &models.Product{}

		err := rows.Scan(
			&product.ID, &product.VendorID, &product.CategoryID, &product.Name, &product.Description,
			&product.Price, &product.StockQuantity, &product.SKU, &product.ImageURL, &product.Status,
			&product.AverageRating, &product.ReviewCount, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET stock_quantity = GREATEST(stock_quantity + $1, 0), updated_at = NOW()
		WHERE id = $2
		RETURNING stock_quantity
	`

	var newStock int

	err := r.DB.QueryRowContext(dbCtx, query, delta, id).Scan(&newStock)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}

		return 0, fmt.Errorf("adjusting stock: %w", err)
	}

	return newStock, nil
}

// decrementStockTx reserves stock inside a checkout transaction. The
// conditional WHERE makes two concurrent orders for the last unit impossible
// to both succeed.
func decrementStockTx(ctx context.Context, tx *sql.Tx, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1
	`

	result, err := tx.ExecContext(ctx, query, quantity, productID)
	if err != nil {
		return fmt.Errorf("decrementing stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return ErrInsufficientStock
	}

	return nil
}

func restoreStockTx(ctx context.Context, tx *sql.Tx, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = NOW()
		WHERE id = $2
	`

	if _, err := tx.ExecContext(ctx, query, quantity, productID); err != nil {
		return fmt.Errorf("restoring stock: %w", err)
	}

	return nil
}
