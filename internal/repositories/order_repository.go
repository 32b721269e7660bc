package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
	"github.com/google/uuid"
)

type OrderRepository interface {
	// CreateOrder persists the order with its items and reserves stock for
	// every line, all in one transaction. Returns ErrInsufficientStock when
	// any line cannot be covered; nothing is persisted in that case.
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderById(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, page, size int) ([]models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *models.UpdateOrderStatusRequest) (*models.Order, error)
	// CancelOrder flips the order to cancelled and restores stock for every
	// item, transactionally. The conditional status update guarantees the
	// restoration happens at most once.
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	UpdatePaymentStatusByIntent(ctx context.Context, intentID string, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) (uuid.UUID, error)
}

type orderRepository struct {
	DB *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepository {
	return &orderRepository{DB: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	dbCtx, cancel := utils.WithTxTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback()

	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	orderQuery := `
		INSERT INTO orders (id, customer_id, status, payment_status, subtotal, tax, shipping,
		                    discount, gift_card_amount, total, coupon_code, gift_card_code, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRowContext(dbCtx, orderQuery,
		order.ID, order.CustomerID, order.Status, order.PaymentStatus,
		order.Subtotal, order.Tax, order.Shipping, order.Discount, order.GiftCardAmount,
		order.Total, order.CouponCode, order.GiftCardCode, addressJSON).
		Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	for i := range order.Items {
		item := &order.Items[i]

		err := tx.QueryRowContext(dbCtx, itemQuery,
			item.ID, order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.TotalPrice).
			Scan(&item.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting order item: %w", err)
		}

		if err := decrementStockTx(dbCtx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *orderRepository) GetOrderById(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	order := &models.Order{}

	var addressJSON []byte

	query := `
		SELECT id, customer_id, status, payment_status, COALESCE(payment_intent_id, ''),
		       subtotal, tax, shipping, discount, gift_card_amount, total,
		       coupon_code, gift_card_code, shipping_address,
		       COALESCE(tracking_number, ''), COALESCE(carrier, ''), created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&order.ID, &order.CustomerID, &order.Status, &order.PaymentStatus, &order.PaymentIntentID,
		&order.Subtotal, &order.Tax, &order.Shipping, &order.Discount, &order.GiftCardAmount,
		&order.Total, &order.CouponCode, &order.GiftCardCode, &addressJSON,
		&order.TrackingNumber, &order.Carrier, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
	}

	items, err := r.listItems(dbCtx, id)
	if err != nil {
		return nil, err
	}

	order.Items = items

	return order, nil
}

func (r *orderRepository) listItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, name, quantity, unit_price, total_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.DB.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}

	defer rows.Close()

	var items []models.OrderItem

	for rows.Next() {
		var item models.OrderItem

		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.CreatedAt)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *orderRepository) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, page, size int) ([]models.Order, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	if err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	offset := (page - 1) * size

	query := `
		SELECT id, customer_id, status, payment_status, COALESCE(payment_intent_id, ''),
		       subtotal, tax, shipping, discount, gift_card_amount, total,
		       coupon_code, gift_card_code, shipping_address,
		       COALESCE(tracking_number, ''), COALESCE(carrier, ''), created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.DB.QueryContext(dbCtx, query, customerID, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	defer rows.Close()

	var orders []models.Order

	for rows.Next() {
		var order models.Order

		var addressJSON []byte

		err := rows.Scan(
			&order.ID, &order.CustomerID, &order.Status, &order.PaymentStatus, &order.PaymentIntentID,
			&order.Subtotal, &order.Tax, &order.Shipping, &order.Discount, &order.GiftCardAmount,
			&order.Total, &order.CouponCode, &order.GiftCardCode, &addressJSON,
			&order.TrackingNumber, &order.Carrier, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}

		if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE orders
		SET status = $1,
		    tracking_number = COALESCE(NULLIF($2, ''), tracking_number),
		    carrier = COALESCE(NULLIF($3, ''), carrier),
		    updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.DB.ExecContext(dbCtx, query, req.Status, req.TrackingNumber, req.Carrier, id)
	if err != nil {
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return nil, sql.ErrNoRows
	}

	return r.GetOrderById(ctx, id)
}

func (r *orderRepository) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	dbCtx, cancel := utils.WithTxTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback()

	// Only a not-yet-cancelled order transitions; a second cancel finds zero
	// rows and never double-restores stock.
	statusQuery := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ($1, $3)
	`

	result, err := tx.ExecContext(dbCtx, statusQuery, models.OrderStatusCancelled, id, models.OrderStatusRefunded)
	if err != nil {
		return nil, fmt.Errorf("cancelling order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return nil, ErrOrderNotCancellable
	}

	itemRows, err := tx.QueryContext(dbCtx, `SELECT product_id, quantity FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}

	type restore struct {
		productID uuid.UUID
		quantity  int
	}

	var restores []restore

	for itemRows.Next() {
		var item restore

		if err := itemRows.Scan(&item.productID, &item.quantity); err != nil {
			itemRows.Close()

			return nil, err
		}

		restores = append(restores, item)
	}

	itemRows.Close()

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for _, item := range restores {
		if err := restoreStockTx(dbCtx, tx, item.productID, item.quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return r.GetOrderById(ctx, id)
}

func (r *orderRepository) SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	_, err := r.DB.ExecContext(dbCtx,
		`UPDATE orders SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2`, intentID, orderID)
	if err != nil {
		return fmt.Errorf("setting payment intent: %w", err)
	}

	return nil
}

func (r *orderRepository) UpdatePaymentStatusByIntent(ctx context.Context, intentID string, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) (uuid.UUID, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var orderID uuid.UUID

	query := `
		UPDATE orders
		SET payment_status = $1, status = $2, updated_at = NOW()
		WHERE payment_intent_id = $3
		RETURNING id
	`

	err := r.DB.QueryRowContext(dbCtx, query, paymentStatus, orderStatus, intentID).Scan(&orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, err
		}

		return uuid.Nil, fmt.Errorf("updating payment status: %w", err)
	}

	return orderID, nil
}
