package repository_test

import (
	"database/sql"
	"errors"
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

func TestCouponRepository(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewCouponRepo(db)
	ctx := t.Context()

	t.Run("GetCouponByCode", func(t *testing.T) {
		expectedSQL := regexp.QuoteMeta(`SELECT id, code, description, type, discount_value, minimum_order_amount, maximum_discount_amount, valid_from, valid_until, is_active, max_uses, max_uses_per_user, used_count, applicable_users, created_at, updated_at FROM coupons WHERE UPPER(code) = UPPER($1)`)

		couponCols := []string{
			"id", "code", "description", "type", "discount_value", "minimum_order_amount",
			"maximum_discount_amount", "valid_from", "valid_until", "is_active",
			"max_uses", "max_uses_per_user", "used_count", "applicable_users", "created_at", "updated_at",
		}

		t.Run("Success - Lookup Is Case Insensitive", func(t *testing.T) {
			// Arrange
			couponID := uuid.New()
			allowedUser := uuid.New()
			now := time.Now()

			rows := sqlmock.NewRows(couponCols).AddRow(
				couponID, "SAVE20", "Spring promo", "percentage", 20.0, 50.0,
				nil, now.Add(-time.Hour), now.Add(time.Hour), true,
				nil, nil, 3, []byte("{"+allowedUser.String()+"}"), now, now)

			mock.ExpectQuery(expectedSQL).WithArgs("save20").WillReturnRows(rows)

			// Act
			coupon, err := repo.GetCouponByCode(ctx, "save20")

			// Assert
			require.NoError(t, err)
			assert.Equal(t, couponID, coupon.ID)
			assert.Equal(t, "SAVE20", coupon.Code)
			assert.Equal(t, 3, coupon.UsedCount)
			require.Len(t, coupon.ApplicableUsers, 1)
			assert.Equal(t, allowedUser, coupon.ApplicableUsers[0])
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("NotFound", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).WithArgs("NOPE").WillReturnError(sql.ErrNoRows)

			// Act
			coupon, err := repo.GetCouponByCode(ctx, "NOPE")

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			assert.Nil(t, coupon)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})

	t.Run("CountUsageByUser", func(t *testing.T) {
		couponID := uuid.New()
		userID := uuid.New()

		expectedSQL := regexp.QuoteMeta(`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`)

		t.Run("Success", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(couponID, userID).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

			// Act
			count, err := repo.CountUsageByUser(ctx, couponID, userID)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, 2, count)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})

	t.Run("Redeem", func(t *testing.T) {
		expectedCountSQL := regexp.QuoteMeta(`UPDATE coupons SET used_count = used_count + 1, updated_at = NOW() WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)`)
		expectedUsageSQL := regexp.QuoteMeta(`INSERT INTO coupon_usages (coupon_id, user_id, order_id, amount) VALUES ($1, $2, $3, $4) RETURNING id, used_at`)

		t.Run("Success", func(t *testing.T) {
			// Arrange
			usage := &models.CouponUsage{
				CouponID: uuid.New(),
				UserID:   uuid.New(),
				OrderID:  uuid.New(),
				Amount:   12.5,
			}
			usageID := uuid.New()
			now := time.Now()

			mock.ExpectBegin()
			mock.ExpectExec(expectedCountSQL).
				WithArgs(usage.CouponID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(expectedUsageSQL).
				WithArgs(usage.CouponID, usage.UserID, usage.OrderID, usage.Amount).
				WillReturnRows(sqlmock.NewRows([]string{"id", "used_at"}).AddRow(usageID, now))
			mock.ExpectCommit()

			// Act
			err := repo.Redeem(ctx, usage)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, usageID, usage.ID)
			assert.WithinDuration(t, now, usage.UsedAt, time.Second)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Exhausted - Conditional Update Matches No Row", func(t *testing.T) {
			// Arrange
			usage := &models.CouponUsage{
				CouponID: uuid.New(),
				UserID:   uuid.New(),
				OrderID:  uuid.New(),
				Amount:   12.5,
			}

			mock.ExpectBegin()
			mock.ExpectExec(expectedCountSQL).
				WithArgs(usage.CouponID).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()

			// Act
			err := repo.Redeem(ctx, usage)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrCouponExhausted)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("UsageInsertError - Nothing Committed", func(t *testing.T) {
			// Arrange
			usage := &models.CouponUsage{
				CouponID: uuid.New(),
				UserID:   uuid.New(),
				OrderID:  uuid.New(),
				Amount:   12.5,
			}
			dbError := errors.New("insert failed")

			mock.ExpectBegin()
			mock.ExpectExec(expectedCountSQL).
				WithArgs(usage.CouponID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(expectedUsageSQL).
				WithArgs(usage.CouponID, usage.UserID, usage.OrderID, usage.Amount).
				WillReturnError(dbError)
			mock.ExpectRollback()

			// Act
			err := repo.Redeem(ctx, usage)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, dbError)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})
}
