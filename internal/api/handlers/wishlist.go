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

type WishlistHandler struct {
	wishlistService *service.WishlistService
	validator       *validator.Validate
}

func NewWishlistHandler(wishlistService *service.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlistService: wishlistService, validator: validator.New()}
}

func (h *WishlistHandler) AddToWishlist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req models.AddProductRefRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid wishlist input")

			return
		}

		item, err := h.wishlistService.AddToWishlist(r.Context(), claims.UserID, req.ProductID)
		if err != nil {
			logger.Error("Failed to add to wishlist", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusCreated, item)
	}
}

func (h *WishlistHandler) RemoveFromWishlist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		productID, err := utils.ParseID(r, "productId")
		if err != nil {
			response.Error(w, err)

			return
		}

		if err := h.wishlistService.RemoveFromWishlist(r.Context(), claims.UserID, productID); err != nil {
			logger.Error("Failed to remove from wishlist", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, map[string]string{"product_id": productID.String()})
	}
}

func (h *WishlistHandler) ListWishlist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		items, err := h.wishlistService.ListWishlist(r.Context(), claims.UserID)
		if err != nil {
			logger.Error("Failed to list wishlist", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, items)
	}
}

// AddToComparison godoc
//	@Summary		Add a product to the comparison list
//	@Description	The comparison list holds at most four products.
//	@Tags			Wishlist
//	@Accept			json
//	@Produce		json
//	@Param			product	body		models.AddProductRefRequest	true	"Product reference"
//	@Success		201		{object}	models.ComparisonItem
//	@Failure		400		{object}	response.ErrorResponse	"Comparison list is full"
//	@Failure		409		{object}	response.ErrorResponse	"Already in list"
//	@Security		BearerAuth
//	@Router			/comparison [post]
func (h *WishlistHandler) AddToComparison() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req models.AddProductRefRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid comparison input")

			return
		}

		item, err := h.wishlistService.AddToComparison(r.Context(), claims.UserID, req.ProductID)
		if err != nil {
			logger.Warn("Comparison add rejected", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusCreated, item)
	}
}

func (h *WishlistHandler) RemoveFromComparison() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		productID, err := utils.ParseID(r, "productId")
		if err != nil {
			response.Error(w, err)

			return
		}

		if err := h.wishlistService.RemoveFromComparison(r.Context(), claims.UserID, productID); err != nil {
			logger.Error("Failed to remove from comparison", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, map[string]string{"product_id": productID.String()})
	}
}

func (h *WishlistHandler) ListComparison() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		items, err := h.wishlistService.ListComparison(r.Context(), claims.UserID)
		if err != nil {
			logger.Error("Failed to list comparison", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, items)
	}
}
