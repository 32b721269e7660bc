package models

import (
	"time"

	"github.com/google/uuid"
)

type GiftCardStatus string

const (
	GiftCardStatusActive   GiftCardStatus = "active"
	GiftCardStatusUsed     GiftCardStatus = "used"
	GiftCardStatusExpired  GiftCardStatus = "expired"
	GiftCardStatusDisabled GiftCardStatus = "disabled"
)

type GiftCard struct {
	ID             uuid.UUID      `json:"id"`
	Code           string         `json:"code"`
	InitialBalance float64        `json:"initial_balance"`
	Balance        float64        `json:"balance"`
	Status         GiftCardStatus `json:"status"`
	IssuedTo       *uuid.UUID     `json:"issued_to,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type GiftCardUsage struct {
	ID         uuid.UUID `json:"id"`
	GiftCardID uuid.UUID `json:"gift_card_id"`
	UserID     uuid.UUID `json:"user_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Amount     float64   `json:"amount"`
	UsedAt     time.Time `json:"used_at"`
}

type IssueGiftCardRequest struct {
	InitialBalance float64    `json:"initial_balance" validate:"required,gt=0"`
	IssuedTo       *uuid.UUID `json:"issued_to,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at" validate:"required"`
}

type GiftCardBalanceResponse struct {
	Code      string         `json:"code"`
	Balance   float64        `json:"balance"`
	Status    GiftCardStatus `json:"status"`
	ExpiresAt time.Time      `json:"expires_at"`
}
