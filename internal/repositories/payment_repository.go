package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
	"github.com/google/uuid"
)

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPaymentsByCustomer(ctx context.Context, customerID uuid.UUID, page, size int) ([]*models.Payment, int, error)
	UpdateStatusByStripeID(ctx context.Context, stripeID string, status models.PaymentStatus) error
}

type paymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepository {
	return &paymentRepository{DB: db}
}

func (r *paymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO payments (order_id, customer_id, amount, currency, description, status, stripe_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		payment.OrderID, payment.CustomerID, payment.Amount, payment.Currency,
		payment.Description, payment.Status, payment.StripeID).
		Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
}

func (r *paymentRepository) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	payment := &models.Payment{}

	query := `
		SELECT id, order_id, customer_id, amount, currency, description, status, stripe_id, created_at, updated_at
		FROM payments
		WHERE id = $1
	`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&payment.ID, &payment.OrderID, &payment.CustomerID, &payment.Amount, &payment.Currency,
		&payment.Description, &payment.Status, &payment.StripeID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) ListPaymentsByCustomer(ctx context.Context, customerID uuid.UUID, page, size int) ([]*models.Payment, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	if err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM payments WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting payments: %w", err)
	}

	offset := (page - 1) * size

	query := `
		SELECT id, order_id, customer_id, amount, currency, description, status, stripe_id, created_at, updated_at
		FROM payments
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.DB.QueryContext(dbCtx, query, customerID, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing payments: %w", err)
	}

	defer rows.Close()

	var payments []*models.Payment

	for rows.Next() {
		payment := &models.Payment{}

		err := rows.Scan(
			&payment.ID, &payment.OrderID, &payment.CustomerID, &payment.Amount, &payment.Currency,
			&payment.Description, &payment.Status, &payment.StripeID, &payment.CreatedAt, &payment.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}

		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

func (r *paymentRepository) UpdateStatusByStripeID(ctx context.Context, stripeID string, status models.PaymentStatus) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx,
		`UPDATE payments SET status = $1, updated_at = NOW() WHERE stripe_id = $2`, status, stripeID)
	if err != nil {
		return fmt.Errorf("updating payment status: %w", err)
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
