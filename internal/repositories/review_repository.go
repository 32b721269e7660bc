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

var ErrDuplicateReview = errors.New("review already exists for this order item")

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListReviewsByProduct(ctx context.Context, productID uuid.UUID, approvedOnly bool, page, size int) ([]*models.Review, int, error)
	ModerateReview(ctx context.Context, id uuid.UUID, approved, flagged *bool) (*models.Review, error)
	DeleteReview(ctx context.Context, id uuid.UUID) error
	// RefreshProductRating rolls the approved reviews up onto the product row.
	RefreshProductRating(ctx context.Context, productID uuid.UUID) error
}

type reviewRepository struct {
	DB *sql.DB
}

func NewReviewRepo(db *sql.DB) ReviewRepository {
	return &reviewRepository{DB: db}
}

func (r *reviewRepository) CreateReview(ctx context.Context, review *models.Review) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO reviews (user_id, product_id, order_id, rating, title, comment, is_approved, is_flagged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.DB.QueryRowContext(dbCtx, query,
		review.UserID, review.ProductID, review.OrderID, review.Rating,
		review.Title, review.Comment, review.IsApproved, review.IsFlagged).
		Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReview
		}

		return fmt.Errorf("inserting review: %w", err)
	}

	return nil
}

func (r *reviewRepository) GetReviewByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	review := &models.Review{}

	query := `
		SELECT id, user_id, product_id, order_id, rating, title, comment,
		       is_approved, is_flagged, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&review.ID, &review.UserID, &review.ProductID, &review.OrderID, &review.Rating,
		&review.Title, &review.Comment, &review.IsApproved, &review.IsFlagged,
		&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	return review, nil
}

func (r *reviewRepository) ListReviewsByProduct(ctx context.Context, productID uuid.UUID, approvedOnly bool, page, size int) ([]*models.Review, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	where := "product_id = $1"
	if approvedOnly {
		where += " AND is_approved = TRUE AND is_flagged = FALSE"
	}

	var total int

	if err := r.DB.QueryRowContext(dbCtx, "SELECT COUNT(*) FROM reviews WHERE "+where, productID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reviews: %w", err)
	}

	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT id, user_id, product_id, order_id, rating, title, comment,
		       is_approved, is_flagged, created_at, updated_at
		FROM reviews
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, where)

	rows, err := r.DB.QueryContext(dbCtx, query, productID, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reviews: %w", err)
	}

	defer rows.Close()

	var reviews []*models.Review

	for rows.Next() {
		review := &models.Review{}

		err := rows.Scan(
			&review.ID, &review.UserID, &review.ProductID, &review.OrderID, &review.Rating,
			&review.Title, &review.Comment, &review.IsApproved, &review.IsFlagged,
			&review.CreatedAt, &review.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

func (r *reviewRepository) ModerateReview(ctx context.Context, id uuid.UUID, approved, flagged *bool) (*models.Review, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE reviews
		SET is_approved = COALESCE($1, is_approved),
		    is_flagged = COALESCE($2, is_flagged),
		    updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.DB.ExecContext(dbCtx, query, approved, flagged, id)
	if err != nil {
		return nil, fmt.Errorf("moderating review: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return nil, sql.ErrNoRows
	}

	return r.GetReviewByID(ctx, id)
}

func (r *reviewRepository) DeleteReview(ctx context.Context, id uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting review: %w", err)
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

func (r *reviewRepository) RefreshProductRating(ctx context.Context, productID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products p
		SET average_rating = COALESCE(agg.avg_rating, 0),
		    review_count = COALESCE(agg.cnt, 0),
		    updated_at = NOW()
		FROM (
			SELECT AVG(rating)::numeric(3,2) AS avg_rating, COUNT(*) AS cnt
			FROM reviews
			WHERE product_id = $1 AND is_approved = TRUE AND is_flagged = FALSE
		) agg
		WHERE p.id = $1
	`

	if _, err := r.DB.ExecContext(dbCtx, query, productID); err != nil {
		return fmt.Errorf("refreshing product rating: %w", err)
	}

	return nil
}
