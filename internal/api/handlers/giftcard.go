package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	"github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	service "github.com/dentalmart/marketplace/internal/services"
	"github.com/dentalmart/marketplace/internal/utils"
	"github.com/dentalmart/marketplace/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type GiftCardHandler struct {
	giftCardService *service.GiftCardService
	validator       *validator.Validate
}

func NewGiftCardHandler(giftCardService *service.GiftCardService) *GiftCardHandler {
	return &GiftCardHandler{giftCardService: giftCardService, validator: validator.New()}
}

func (h *GiftCardHandler) IssueGiftCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		var req models.IssueGiftCardRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid issue gift card input")

			return
		}

		card, err := h.giftCardService.IssueGiftCard(r.Context(), &req)
		if err != nil {
			logger.Error("Failed to issue gift card", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Gift card issued", slog.String("giftCardId", card.ID.String()))
		response.Success(w, http.StatusCreated, card)
	}
}

func (h *GiftCardHandler) GetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		code := r.PathValue("code")
		if code == "" {
			response.Error(w, errors.ValidationError("Gift card code is required"))

			return
		}

		balance, err := h.giftCardService.GetBalance(r.Context(), code)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, balance)
	}
}

func (h *GiftCardHandler) ListGiftCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		page, pageSize := utils.Pagination(r)

		cards, total, err := h.giftCardService.ListGiftCards(r.Context(), page, pageSize)
		if err != nil {
			logger.Error("Failed to list gift cards", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, models.Paginated(cards, total, page, pageSize))
	}
}

func (h *GiftCardHandler) DisableGiftCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		code := r.PathValue("code")
		if code == "" {
			response.Error(w, errors.ValidationError("Gift card code is required"))

			return
		}

		if err := h.giftCardService.DisableGiftCard(r.Context(), code); err != nil {
			logger.Error("Failed to disable gift card", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Gift card disabled")
		response.Success(w, http.StatusOK, map[string]string{"status": string(models.GiftCardStatusDisabled)})
	}
}
