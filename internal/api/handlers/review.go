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

type ReviewHandler struct {
	reviewService *service.ReviewService
	validator     *validator.Validate
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, validator: validator.New()}
}

// CreateReview godoc
//	@Summary		Submit a product review
//	@Description	The reviewer must own a delivered order containing the product. One review per customer per product; reviews await moderation before they are listed.
//	@Tags			Reviews
//	@Accept			json
//	@Produce		json
//	@Param			review	body		models.CreateReviewRequest	true	"Rating, title and comment"
//	@Success		201		{object}	models.Review				"Pending review"
//	@Failure		400		{object}	response.ErrorResponse		"Order not delivered or product not in order"
//	@Failure		409		{object}	response.ErrorResponse		"Already reviewed"
//	@Security		BearerAuth
//	@Router			/reviews [post]
func (h *ReviewHandler) CreateReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req models.CreateReviewRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid create review input")

			return
		}

		review, err := h.reviewService.CreateReview(r.Context(), claims.UserID, &req)
		if err != nil {
			logger.Error("Failed to create review", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Review submitted", slog.String("reviewId", review.ID.String()))
		response.Success(w, http.StatusCreated, review)
	}
}

func (h *ReviewHandler) ListProductReviews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		productID, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		// Admins see unmoderated reviews as well.
		approvedOnly := true
		if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.IsAdmin() {
			approvedOnly = r.URL.Query().Get("all") != "true"
		}

		page, pageSize := utils.Pagination(r)

		reviews, total, err := h.reviewService.ListProductReviews(r.Context(), productID, approvedOnly, page, pageSize)
		if err != nil {
			logger.Error("Failed to list reviews", slog.String("productId", productID.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, models.Paginated(reviews, total, page, pageSize))
	}
}

func (h *ReviewHandler) ModerateReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		var req models.ModerateReviewRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid moderate review input")

			return
		}

		review, err := h.reviewService.Moderate(r.Context(), id, &req)
		if err != nil {
			logger.Error("Failed to moderate review", slog.String("reviewId", id.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Review moderated", slog.String("reviewId", id.String()))
		response.Success(w, http.StatusOK, review)
	}
}

func (h *ReviewHandler) DeleteReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		if err := h.reviewService.DeleteReview(r.Context(), claims, id); err != nil {
			logger.Error("Failed to delete review", slog.String("reviewId", id.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Review deleted", slog.String("reviewId", id.String()))
		response.Success(w, http.StatusOK, map[string]string{"id": id.String()})
	}
}
