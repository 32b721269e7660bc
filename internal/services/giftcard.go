package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/google/uuid"
)

type GiftCardService struct {
	repo repository.GiftCardRepository
}

func NewGiftCardService(repo repository.GiftCardRepository) *GiftCardService {
	return &GiftCardService{repo: repo}
}

const giftCardCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateGiftCardCode() (string, error) {

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating gift card code: %w", err)
	}

	for i, b := range buf {
		buf[i] = giftCardCodeAlphabet[int(b)%len(giftCardCodeAlphabet)]
	}

	return fmt.Sprintf("GC-%s-%s-%s-%s", buf[0:4], buf[4:8], buf[8:12], buf[12:16]), nil
}

func (s *GiftCardService) IssueGiftCard(ctx context.Context, req *models.IssueGiftCardRequest) (*models.GiftCard, error) {

	if !req.ExpiresAt.After(time.Now()) {
		return nil, appErrors.ValidationError("Expiry date must be in the future")
	}

	code, err := generateGiftCardCode()
	if err != nil {
		return nil, appErrors.InternalError("Failed to generate gift card code").WithError(err)
	}

	card := &models.GiftCard{
		Code:           code,
		InitialBalance: req.InitialBalance,
		Balance:        req.InitialBalance,
		Status:         models.GiftCardStatusActive,
		IssuedTo:       req.IssuedTo,
		ExpiresAt:      req.ExpiresAt,
	}

	if err := s.repo.CreateGiftCard(ctx, card); err != nil {
		return nil, appErrors.DatabaseError("Failed to issue gift card").WithError(err)
	}

	return card, nil
}

func (s *GiftCardService) GetBalance(ctx context.Context, code string) (*models.GiftCardBalanceResponse, error) {

	card, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	return &models.GiftCardBalanceResponse{
		Code:      card.Code,
		Balance:   card.Balance,
		Status:    card.Status,
		ExpiresAt: card.ExpiresAt,
	}, nil
}

func (s *GiftCardService) ListGiftCards(ctx context.Context, page, size int) ([]*models.GiftCard, int, error) {

	cards, total, err := s.repo.ListGiftCards(ctx, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list gift cards").WithError(err)
	}

	return cards, total, nil
}

func (s *GiftCardService) DisableGiftCard(ctx context.Context, code string) error {

	if err := s.repo.UpdateStatus(ctx, code, models.GiftCardStatusDisabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Gift card not found")
		}

		return appErrors.DatabaseError("Failed to disable gift card").WithError(err)
	}

	return nil
}

// Validate checks the card can cover part of a purchase and returns the
// amount it would contribute toward the given total.
func (s *GiftCardService) Validate(ctx context.Context, code string, orderTotal float64) (*models.GiftCard, float64, error) {

	card, err := s.lookup(ctx, code)
	if err != nil {
		return nil, 0, err
	}

	if card.Status != models.GiftCardStatusActive {
		return nil, 0, appErrors.BusinessRuleError("This gift card cannot be used")
	}

	if time.Now().After(card.ExpiresAt) {
		// Lazily flip the stored status; the card was active until first touch
		// after expiry.
		_ = s.repo.UpdateStatus(ctx, card.Code, models.GiftCardStatusExpired)

		return nil, 0, appErrors.BusinessRuleError("This gift card has expired")
	}

	if card.Balance <= 0 {
		return nil, 0, appErrors.BusinessRuleError("This gift card has no remaining balance")
	}

	applied := card.Balance
	if applied > orderTotal {
		applied = orderTotal
	}

	return card, round2(applied), nil
}

// Redeem draws the amount down from the card balance. The repository's
// conditional update refuses an overdraw, so concurrent checkouts cannot
// spend the same balance twice.
func (s *GiftCardService) Redeem(ctx context.Context, card *models.GiftCard, userID, orderID uuid.UUID, amount float64) error {

	usage := &models.GiftCardUsage{
		GiftCardID: card.ID,
		UserID:     userID,
		OrderID:    orderID,
		Amount:     amount,
	}

	if err := s.repo.Redeem(ctx, usage); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return appErrors.BusinessRuleError("Gift card balance is no longer sufficient")
		}

		return appErrors.DatabaseError("Failed to redeem gift card").WithError(err)
	}

	return nil
}

func (s *GiftCardService) lookup(ctx context.Context, code string) (*models.GiftCard, error) {

	card, err := s.repo.GetGiftCardByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Gift card not found")
		}

		return nil, appErrors.DatabaseError("Failed to look up gift card").WithError(err)
	}

	return card, nil
}
