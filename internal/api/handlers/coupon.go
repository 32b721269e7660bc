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

type CouponHandler struct {
	couponService *service.CouponService
	validator     *validator.Validate
}

func NewCouponHandler(couponService *service.CouponService) *CouponHandler {
	return &CouponHandler{couponService: couponService, validator: validator.New()}
}

func (h *CouponHandler) CreateCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		var req models.CreateCouponRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid create coupon input")

			return
		}

		coupon, err := h.couponService.CreateCoupon(r.Context(), &req)
		if err != nil {
			logger.Error("Failed to create coupon", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Coupon created", slog.String("code", coupon.Code))
		response.Success(w, http.StatusCreated, coupon)
	}
}

func (h *CouponHandler) GetCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		code := r.PathValue("code")
		if code == "" {
			response.Error(w, errors.ValidationError("Coupon code is required"))

			return
		}

		coupon, err := h.couponService.GetCoupon(r.Context(), code)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, coupon)
	}
}

func (h *CouponHandler) UpdateCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		code := r.PathValue("code")
		if code == "" {
			response.Error(w, errors.ValidationError("Coupon code is required"))

			return
		}

		var req models.UpdateCouponRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update coupon input")

			return
		}

		coupon, err := h.couponService.UpdateCoupon(r.Context(), code, &req)
		if err != nil {
			logger.Error("Failed to update coupon", slog.String("code", code), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Coupon updated", slog.String("code", code))
		response.Success(w, http.StatusOK, coupon)
	}
}

func (h *CouponHandler) ListCoupons() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		page, pageSize := utils.Pagination(r)

		coupons, total, err := h.couponService.ListCoupons(r.Context(), page, pageSize)
		if err != nil {
			logger.Error("Failed to list coupons", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, models.Paginated(coupons, total, page, pageSize))
	}
}

// ValidateCoupon lets a client preview a coupon against an order amount
// without mutating anything.
func (h *CouponHandler) ValidateCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req struct {
			Code        string  `json:"code" validate:"required,min=3,max=50"`
			OrderAmount float64 `json:"order_amount" validate:"gte=0"`
		}

		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid validate coupon input")

			return
		}

		discount, err := h.couponService.Validate(r.Context(), req.Code, claims.UserID, req.OrderAmount)
		if err != nil {
			logger.Warn("Coupon validation rejected", slog.String("code", req.Code), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, discount)
	}
}
