package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
)

type GiftCardRepository interface {
	CreateGiftCard(ctx context.Context, card *models.GiftCard) error
	GetGiftCardByCode(ctx context.Context, code string) (*models.GiftCard, error)
	ListGiftCards(ctx context.Context, page, size int) ([]*models.GiftCard, int, error)
	UpdateStatus(ctx context.Context, code string, status models.GiftCardStatus) error
	// Redeem decrements the balance and records the usage; the conditional
	// update refuses to overdraw the card. A card drained to zero flips to
	// the used status in the same statement.
	Redeem(ctx context.Context, usage *models.GiftCardUsage) error
}

type giftCardRepository struct {
	DB *sql.DB
}

func NewGiftCardRepo(db *sql.DB) GiftCardRepository {
	return &giftCardRepository{DB: db}
}

func (r *giftCardRepository) CreateGiftCard(ctx context.Context, card *models.GiftCard) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO gift_cards (code, initial_balance, balance, status, issued_to, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		card.Code, card.InitialBalance, card.Balance, card.Status, card.IssuedTo, card.ExpiresAt).
		Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
}

func (r *giftCardRepository) GetGiftCardByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	card := &models.GiftCard{}

	query := `
		SELECT id, code, initial_balance, balance, status, issued_to, expires_at, created_at, updated_at
		FROM gift_cards
		WHERE UPPER(code) = UPPER($1)
	`

	err := r.DB.QueryRowContext(dbCtx, query, code).Scan(
		&card.ID, &card.Code, &card.InitialBalance, &card.Balance, &card.Status,
		&card.IssuedTo, &card.ExpiresAt, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	return card, nil
}

func (r *giftCardRepository) ListGiftCards(ctx context.Context, page, size int) ([]*models.GiftCard, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	if err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM gift_cards`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting gift cards: %w", err)
	}

	offset := (page - 1) * size

	query := `
		SELECT id, code, initial_balance, balance, status, issued_to, expires_at, created_at, updated_at
		FROM gift_cards
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.DB.QueryContext(dbCtx, query, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing gift cards: %w", err)
	}

	defer rows.Close()

	var cards []*models.GiftCard

	for rows.Next() {
		card := &models.GiftCard{}

		err := rows.Scan(
			&card.ID, &card.Code, &card.InitialBalance, &card.Balance, &card.Status,
			&card.IssuedTo, &card.ExpiresAt, &card.CreatedAt, &card.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}

		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return cards, total, nil
}

func (r *giftCardRepository) UpdateStatus(ctx context.Context, code string, status models.GiftCardStatus) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx,
		`UPDATE gift_cards SET status = $1, updated_at = NOW() WHERE UPPER(code) = UPPER($2)`, status, code)
	if err != nil {
		return fmt.Errorf("updating gift card status: %w", err)
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

func (r *giftCardRepository) Redeem(ctx context.Context, usage *models.GiftCardUsage) error {
	dbCtx, cancel := utils.WithTxTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback()

	balanceQuery := `
		UPDATE gift_cards
		SET balance = balance - $1,
		    status = CASE WHEN balance - $1 <= 0 THEN 'used' ELSE status END,
		    updated_at = NOW()
		WHERE id = $2 AND status = 'active' AND balance >= $1
	`

	result, err := tx.ExecContext(dbCtx, balanceQuery, usage.Amount, usage.GiftCardID)
	if err != nil {
		return fmt.Errorf("decrementing gift card balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return ErrInsufficientBalance
	}

	usageQuery := `
		INSERT INTO gift_card_usages (gift_card_id, user_id, order_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, used_at
	`

	err = tx.QueryRowContext(dbCtx, usageQuery,
		usage.GiftCardID, usage.UserID, usage.OrderID, usage.Amount).
		Scan(&usage.ID, &usage.UsedAt)
	if err != nil {
		return fmt.Errorf("recording gift card usage: %w", err)
	}

	return tx.Commit()
}
