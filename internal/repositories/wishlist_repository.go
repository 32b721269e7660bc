package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrAlreadyInList = errors.New("product already in list")

// WishlistRepository backs both the wishlist and the product comparison list;
// the two differ only by table.
type WishlistRepository interface {
	AddToWishlist(ctx context.Context, item *models.WishlistItem) error
	RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]*models.WishlistItem, error)
	AddToComparison(ctx context.Context, item *models.ComparisonItem) error
	RemoveFromComparison(ctx context.Context, userID, productID uuid.UUID) error
	ListComparison(ctx context.Context, userID uuid.UUID) ([]*models.ComparisonItem, error)
	CountComparison(ctx context.Context, userID uuid.UUID) (int, error)
}

type wishlistRepository struct {
	DB *sql.DB
}

func NewWishlistRepo(db *sql.DB) WishlistRepository {
	return &wishlistRepository{DB: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *wishlistRepository) AddToWishlist(ctx context.Context, item *models.WishlistItem) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO wishlist_items (user_id, product_id)
		VALUES ($1, $2)
		RETURNING id, added_at
	`

	err := r.DB.QueryRowContext(dbCtx, query, item.UserID, item.ProductID).
		Scan(&item.ID, &item.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyInList
		}

		return fmt.Errorf("inserting wishlist item: %w", err)
	}

	return nil
}

func (r *wishlistRepository) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	return r.remove(ctx, "wishlist_items", userID, productID)
}

func (r *wishlistRepository) ListWishlist(ctx context.Context, userID uuid.UUID) ([]*models.WishlistItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT w.id, w.user_id, w.product_id, w.added_at,
		       p.name, p.price, p.stock_quantity, p.image_url, p.status
		FROM wishlist_items w
		JOIN products p ON w.product_id = p.id
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC
	`

	rows, err := r.DB.QueryContext(dbCtx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing wishlist: %w", err)
	}

	defer rows.Close()

	var items []*models.WishlistItem

	for rows.Next() {
		item := &models.WishlistItem{Product: &models.Product{}}

		err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.AddedAt,
			&item.Product.Name, &item.Product.Price, &item.Product.StockQuantity,
			&item.Product.ImageURL, &item.Product.Status)
		if err != nil {
			return nil, err
		}

		item.Product.ID = item.ProductID
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *wishlistRepository) AddToComparison(ctx context.Context, item *models.ComparisonItem) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO comparison_items (user_id, product_id)
		VALUES ($1, $2)
		RETURNING id, added_at
	`

	err := r.DB.QueryRowContext(dbCtx, query, item.UserID, item.ProductID).
		Scan(&item.ID, &item.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyInList
		}

		return fmt.Errorf("inserting comparison item: %w", err)
	}

	return nil
}

func (r *wishlistRepository) RemoveFromComparison(ctx context.Context, userID, productID uuid.UUID) error {
	return r.remove(ctx, "comparison_items", userID, productID)
}

func (r *wishlistRepository) ListComparison(ctx context.Context, userID uuid.UUID) ([]*models.ComparisonItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT c.id, c.user_id, c.product_id, c.added_at,
		       p.name, p.price, p.stock_quantity, p.image_url, p.status, p.average_rating
		FROM comparison_items c
		JOIN products p ON c.product_id = p.id
		WHERE c.user_id = $1
		ORDER BY c.added_at
	`

	rows, err := r.DB.QueryContext(dbCtx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing comparison: %w", err)
	}

	defer rows.Close()

	var items []*models.ComparisonItem

	for rows.Next() {
		item := &models.ComparisonItem{Product: &models.Product{}}

		err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.AddedAt,
			&item.Product.Name, &item.Product.Price, &item.Product.StockQuantity,
			&item.Product.ImageURL, &item.Product.Status, &item.Product.AverageRating)
		if err != nil {
			return nil, err
		}

		item.Product.ID = item.ProductID
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *wishlistRepository) CountComparison(ctx context.Context, userID uuid.UUID) (int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var count int

	err := r.DB.QueryRowContext(dbCtx,
		`SELECT COUNT(*) FROM comparison_items WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting comparison items: %w", err)
	}

	return count, nil
}

func (r *wishlistRepository) remove(ctx context.Context, table string, userID, productID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND product_id = $2`, table)

	result, err := r.DB.ExecContext(dbCtx, query, userID, productID)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
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
