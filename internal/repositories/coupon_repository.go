package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CouponRepository interface {
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, coupon *models.Coupon) error
	ListCoupons(ctx context.Context, page, size int) ([]*models.Coupon, int, error)
	CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int, error)
	// Redeem appends a usage record and bumps used_count, but only while the
	// global cap is not exhausted. Two concurrent redemptions of the last use
	// cannot both succeed.
	Redeem(ctx context.Context, usage *models.CouponUsage) error
}

type couponRepository struct {
	DB *sql.DB
}

func NewCouponRepo(db *sql.DB) CouponRepository {
	return &couponRepository{DB: db}
}

func (r *couponRepository) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO coupons (code, description, type, discount_value, minimum_order_amount,
		                     maximum_discount_amount, valid_from, valid_until, is_active,
		                     max_uses, max_uses_per_user, applicable_users)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	applicable := make([]string, 0, len(coupon.ApplicableUsers))
	for _, id := range coupon.ApplicableUsers {
		applicable = append(applicable, id.String())
	}

	return r.DB.QueryRowContext(dbCtx, query,
		coupon.Code, coupon.Description, coupon.Type, coupon.DiscountValue,
		coupon.MinimumOrderAmount, coupon.MaximumDiscountAmount,
		coupon.ValidFrom, coupon.ValidUntil, coupon.IsActive,
		coupon.MaxUses, coupon.MaxUsesPerUser, pq.Array(applicable)).
		Scan(&coupon.ID, &coupon.CreatedAt, &coupon.UpdatedAt)
}

func (r *couponRepository) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	coupon := &models.Coupon{}

	var applicable pq.StringArray

	query := `
		SELECT id, code, description, type, discount_value, minimum_order_amount,
		       maximum_discount_amount, valid_from, valid_until, is_active,
		       max_uses, max_uses_per_user, used_count, applicable_users, created_at, updated_at
		FROM coupons
		WHERE UPPER(code) = UPPER($1)
	`

	err := r.DB.QueryRowContext(dbCtx, query, code).Scan(
		&coupon.ID, &coupon.Code, &coupon.Description, &coupon.Type, &coupon.DiscountValue,
		&coupon.MinimumOrderAmount, &coupon.MaximumDiscountAmount,
		&coupon.ValidFrom, &coupon.ValidUntil, &coupon.IsActive,
		&coupon.MaxUses, &coupon.MaxUsesPerUser, &coupon.UsedCount,
		&applicable, &coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	for _, raw := range applicable {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid applicable user id %q: %w", raw, err)
		}

		coupon.ApplicableUsers = append(coupon.ApplicableUsers, id)
	}

	return coupon, nil
}

func (r *couponRepository) UpdateCoupon(ctx context.Context, coupon *models.Coupon) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE coupons
		SET description = $1, discount_value = $2, minimum_order_amount = $3,
		    maximum_discount_amount = $4, valid_until = $5, is_active = $6,
		    max_uses = $7, max_uses_per_user = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		coupon.Description, coupon.DiscountValue, coupon.MinimumOrderAmount,
		coupon.MaximumDiscountAmount, coupon.ValidUntil, coupon.IsActive,
		coupon.MaxUses, coupon.MaxUsesPerUser, coupon.ID).
		Scan(&coupon.UpdatedAt)
}

func (r *couponRepository) ListCoupons(ctx context.Context, page, size int) ([]*models.Coupon, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	if err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting coupons: %w", err)
	}

	offset := (page - 1) * size

	query := `
		SELECT id, code, description, type, discount_value, minimum_order_amount,
		       maximum_discount_amount, valid_from, valid_until, is_active,
		       max_uses, max_uses_per_user, used_count, created_at, updated_at
		FROM coupons
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.DB.QueryContext(dbCtx, query, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}

	defer rows.Close()

	var coupons []*models.Coupon

	for rows.Next() {
		coupon := &models.Coupon{}

		err := rows.Scan(
			&coupon.ID, &coupon.Code, &coupon.Description, &coupon.Type, &coupon.DiscountValue,
			&coupon.MinimumOrderAmount, &coupon.MaximumDiscountAmount,
			&coupon.ValidFrom, &coupon.ValidUntil, &coupon.IsActive,
			&coupon.MaxUses, &coupon.MaxUsesPerUser, &coupon.UsedCount,
			&coupon.CreatedAt, &coupon.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}

		coupons = append(coupons, coupon)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return coupons, total, nil
}

func (r *couponRepository) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var count int

	err := r.DB.QueryRowContext(dbCtx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting coupon usage: %w", err)
	}

	return count, nil
}

func (r *couponRepository) Redeem(ctx context.Context, usage *models.CouponUsage) error {
	dbCtx, cancel := utils.WithTxTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback()

	countQuery := `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
	`

	result, err := tx.ExecContext(dbCtx, countQuery, usage.CouponID)
	if err != nil {
		return fmt.Errorf("incrementing coupon usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return ErrCouponExhausted
	}

	usageQuery := `
		INSERT INTO coupon_usages (coupon_id, user_id, order_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, used_at
	`

	err = tx.QueryRowContext(dbCtx, usageQuery,
		usage.CouponID, usage.UserID, usage.OrderID, usage.Amount).
		Scan(&usage.ID, &usage.UsedAt)
	if err != nil {
		return fmt.Errorf("recording coupon usage: %w", err)
	}

	return tx.Commit()
}
