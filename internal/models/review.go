package models

import (
	"time"

	"github.com/google/uuid"
)

// Review ties exactly one (user, product, order) triple; the repository keeps
// a unique constraint over those three columns.
type Review struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ProductID  uuid.UUID `json:"product_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Rating     int       `json:"rating"`
	Title      string    `json:"title,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	IsApproved bool      `json:"is_approved"`
	IsFlagged  bool      `json:"is_flagged"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateReviewRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	OrderID   uuid.UUID `json:"order_id" validate:"required"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Title     string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Comment   string    `json:"comment,omitempty" validate:"omitempty,max=4000"`
}

type ModerateReviewRequest struct {
	IsApproved *bool `json:"is_approved,omitempty"`
	IsFlagged  *bool `json:"is_flagged,omitempty"`
}
