package repository_test

import (
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Items: []models.OrderItem{
			{
				ID:         uuid.New(),
				ProductID:  uuid.New(),
				Name:       "Composite Resin Kit",
				Quantity:   2,
				UnitPrice:  50.0,
				TotalPrice: 100.0,
			},
		},
		Subtotal: 100.0,
		Tax:      10.0,
		Total:    110.0,
		ShippingAddress: &models.Address{
			Street:     "12 Clinic Way",
			City:       "Portland",
			State:      "OR",
			PostalCode: "97201",
			Country:    "US",
		},
	}
}

func TestOrderRepository(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewOrderRepo(db)
	ctx := t.Context()

	orderSQL := regexp.QuoteMeta(`INSERT INTO orders (id, customer_id, status, payment_status, subtotal, tax, shipping, discount, gift_card_amount, total, coupon_code, gift_card_code, shipping_address) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING created_at, updated_at`)
	itemSQL := regexp.QuoteMeta(`INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price, total_price) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`)
	decrementSQL := regexp.QuoteMeta(`UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = NOW() WHERE id = $2 AND stock_quantity >= $1`)

	t.Run("CreateOrder", func(t *testing.T) {
		t.Run("Success - Order, Items And Stock In One Transaction", func(t *testing.T) {
			// Arrange
			order := testOrder()
			item := order.Items[0]
			now := time.Now()
			addressJSON, err := json.Marshal(order.ShippingAddress)
			require.NoError(t, err)

			mock.ExpectBegin()
			mock.ExpectQuery(orderSQL).
				WithArgs(order.ID, order.CustomerID, order.Status, order.PaymentStatus,
					order.Subtotal, order.Tax, order.Shipping, order.Discount, order.GiftCardAmount,
					order.Total, order.CouponCode, order.GiftCardCode, addressJSON).
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
			mock.ExpectQuery(itemSQL).
				WithArgs(item.ID, order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.TotalPrice).
				WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
			mock.ExpectExec(decrementSQL).
				WithArgs(item.Quantity, item.ProductID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			// Act
			err = repo.CreateOrder(ctx, order)

			// Assert
			require.NoError(t, err)
			assert.WithinDuration(t, now, order.CreatedAt, time.Second)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("InsufficientStock - Transaction Rolls Back", func(t *testing.T) {
			// Arrange
			order := testOrder()
			item := order.Items[0]
			now := time.Now()
			addressJSON, err := json.Marshal(order.ShippingAddress)
			require.NoError(t, err)

			mock.ExpectBegin()
			mock.ExpectQuery(orderSQL).
				WithArgs(order.ID, order.CustomerID, order.Status, order.PaymentStatus,
					order.Subtotal, order.Tax, order.Shipping, order.Discount, order.GiftCardAmount,
					order.Total, order.CouponCode, order.GiftCardCode, addressJSON).
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
			mock.ExpectQuery(itemSQL).
				WithArgs(item.ID, order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.TotalPrice).
				WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
			// Conditional update matches no row when the remaining stock cannot
			// cover the line.
			mock.ExpectExec(decrementSQL).
				WithArgs(item.Quantity, item.ProductID).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()

			// Act
			err = repo.CreateOrder(ctx, order)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrInsufficientStock)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})

	t.Run("CancelOrder", func(t *testing.T) {
		statusSQL := regexp.QuoteMeta(`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status NOT IN ($1, $3)`)
		itemsSQL := regexp.QuoteMeta(`SELECT product_id, quantity FROM order_items WHERE order_id = $1`)
		restoreSQL := regexp.QuoteMeta(`UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2`)
		getOrderSQL := regexp.QuoteMeta(`SELECT id, customer_id, status, payment_status, COALESCE(payment_intent_id, ''), subtotal, tax, shipping, discount, gift_card_amount, total, coupon_code, gift_card_code, shipping_address, COALESCE(tracking_number, ''), COALESCE(carrier, ''), created_at, updated_at FROM orders WHERE id = $1`)
		getItemsSQL := regexp.QuoteMeta(`SELECT id, order_id, product_id, name, quantity, unit_price, total_price, created_at FROM order_items WHERE order_id = $1 ORDER BY created_at`)

		t.Run("Success - Stock Restored For Every Item", func(t *testing.T) {
			// Arrange
			orderID := uuid.New()
			customerID := uuid.New()
			productID := uuid.New()
			now := time.Now()
			addressJSON := []byte(`{"street":"12 Clinic Way","city":"Portland","state":"OR","postal_code":"97201","country":"US"}`)

			mock.ExpectBegin()
			mock.ExpectExec(statusSQL).
				WithArgs(models.OrderStatusCancelled, orderID, models.OrderStatusRefunded).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(itemsSQL).
				WithArgs(orderID).
				WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(productID, 2))
			mock.ExpectExec(restoreSQL).
				WithArgs(2, productID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			mock.ExpectQuery(getOrderSQL).
				WithArgs(orderID).
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "customer_id", "status", "payment_status", "payment_intent_id",
					"subtotal", "tax", "shipping", "discount", "gift_card_amount", "total",
					"coupon_code", "gift_card_code", "shipping_address",
					"tracking_number", "carrier", "created_at", "updated_at",
				}).AddRow(
					orderID, customerID, "cancelled", "pending", "",
					100.0, 10.0, 0.0, 0.0, 0.0, 110.0,
					"", "", addressJSON, "", "", now, now))
			mock.ExpectQuery(getItemsSQL).
				WithArgs(orderID).
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "order_id", "product_id", "name", "quantity", "unit_price", "total_price", "created_at",
				}).AddRow(uuid.New(), orderID, productID, "Composite Resin Kit", 2, 50.0, 100.0, now))

			// Act
			order, err := repo.CancelOrder(ctx, orderID)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCancelled, order.Status)
			require.Len(t, order.Items, 1)
			assert.Equal(t, productID, order.Items[0].ProductID)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("AlreadyCancelled - No Second Restore", func(t *testing.T) {
			// Arrange
			orderID := uuid.New()

			mock.ExpectBegin()
			mock.ExpectExec(statusSQL).
				WithArgs(models.OrderStatusCancelled, orderID, models.OrderStatusRefunded).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()

			// Act
			order, err := repo.CancelOrder(ctx, orderID)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrOrderNotCancellable)
			assert.Nil(t, order)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})

	t.Run("UpdatePaymentStatusByIntent", func(t *testing.T) {
		expectedSQL := regexp.QuoteMeta(`UPDATE orders SET payment_status = $1, status = $2, updated_at = NOW() WHERE payment_intent_id = $3 RETURNING id`)

		t.Run("Success", func(t *testing.T) {
			// Arrange
			orderID := uuid.New()

			mock.ExpectQuery(expectedSQL).
				WithArgs(models.PaymentStatusPaid, models.OrderStatusProcessing, "pi_123").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(orderID))

			// Act
			id, err := repo.UpdatePaymentStatusByIntent(ctx, "pi_123", models.PaymentStatusPaid, models.OrderStatusProcessing)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, orderID, id)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("UnknownIntent", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(models.PaymentStatusPaid, models.OrderStatusProcessing, "pi_unknown").
				WillReturnError(sql.ErrNoRows)

			// Act
			id, err := repo.UpdatePaymentStatusByIntent(ctx, "pi_unknown", models.PaymentStatusPaid, models.OrderStatusProcessing)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			assert.Equal(t, uuid.Nil, id)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})
}
