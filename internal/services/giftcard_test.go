package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	service "github.com/dentalmart/marketplace/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestIssueGiftCard(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Generated Code Format", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		mockRepo.On("CreateGiftCard", ctx, mock.MatchedBy(func(c *models.GiftCard) bool {
			return c.Status == models.GiftCardStatusActive &&
				c.Balance == 75.0 &&
				c.InitialBalance == 75.0
		})).Return(nil).Once()

		card, err := giftCardService.IssueGiftCard(ctx, &models.IssueGiftCardRequest{
			InitialBalance: 75.0,
			ExpiresAt:      time.Now().Add(365 * 24 * time.Hour),
		})

		assert.NoError(t, err)
		assert.Regexp(t, `^GC-[A-Z2-9]{4}-[A-Z2-9]{4}-[A-Z2-9]{4}-[A-Z2-9]{4}$`, card.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Expiry In The Past", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		card, err := giftCardService.IssueGiftCard(ctx, &models.IssueGiftCardRequest{
			InitialBalance: 75.0,
			ExpiresAt:      time.Now().Add(-time.Hour),
		})

		assert.Nil(t, card)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeValidation, appErr.Code)
		mockRepo.AssertNotCalled(t, "CreateGiftCard", mock.Anything, mock.Anything)
	})
}

func TestValidateGiftCard(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies Full Balance When Below Order Total", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		card := &models.GiftCard{
			Code:      "GC-TEST",
			Balance:   25.0,
			Status:    models.GiftCardStatusActive,
			ExpiresAt: time.Now().Add(time.Hour),
		}
		mockRepo.On("GetGiftCardByCode", ctx, "GC-TEST").Return(card, nil).Once()

		_, applied, err := giftCardService.Validate(ctx, "GC-TEST", 100.0)

		assert.NoError(t, err)
		assert.Equal(t, 25.0, applied)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Caps Applied Amount At Order Total", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		card := &models.GiftCard{
			Code:      "GC-TEST",
			Balance:   200.0,
			Status:    models.GiftCardStatusActive,
			ExpiresAt: time.Now().Add(time.Hour),
		}
		mockRepo.On("GetGiftCardByCode", ctx, "GC-TEST").Return(card, nil).Once()

		_, applied, err := giftCardService.Validate(ctx, "GC-TEST", 80.0)

		assert.NoError(t, err)
		assert.Equal(t, 80.0, applied)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Expired Card Flips Status Lazily", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		card := &models.GiftCard{
			Code:      "GC-TEST",
			Balance:   50.0,
			Status:    models.GiftCardStatusActive,
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		mockRepo.On("GetGiftCardByCode", ctx, "GC-TEST").Return(card, nil).Once()
		mockRepo.On("UpdateStatus", ctx, "GC-TEST", models.GiftCardStatusExpired).Return(nil).Once()

		_, _, err := giftCardService.Validate(ctx, "GC-TEST", 100.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		assert.Contains(t, appErr.Message, "expired")
		mockRepo.AssertExpectations(t)
	})

	t.Run("Disabled Card Is Rejected", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		card := &models.GiftCard{
			Code:      "GC-TEST",
			Balance:   50.0,
			Status:    models.GiftCardStatusDisabled,
			ExpiresAt: time.Now().Add(time.Hour),
		}
		mockRepo.On("GetGiftCardByCode", ctx, "GC-TEST").Return(card, nil).Once()

		_, _, err := giftCardService.Validate(ctx, "GC-TEST", 100.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBusinessRule, appErr.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Unknown Code", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		mockRepo.On("GetGiftCardByCode", ctx, "GC-NOPE").Return(nil, sql.ErrNoRows).Once()

		_, _, err := giftCardService.Validate(ctx, "GC-NOPE", 100.0)

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestDisableGiftCard(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		mockRepo.On("UpdateStatus", ctx, "GC-TEST", models.GiftCardStatusDisabled).Return(nil).Once()

		assert.NoError(t, giftCardService.DisableGiftCard(ctx, "GC-TEST"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockRepo := new(mockGiftCardRepo)
		giftCardService := service.NewGiftCardService(mockRepo)

		mockRepo.On("UpdateStatus", ctx, "GC-NOPE", models.GiftCardStatusDisabled).Return(sql.ErrNoRows).Once()

		err := giftCardService.DisableGiftCard(ctx, "GC-NOPE")

		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		mockRepo.AssertExpectations(t)
	})
}
