package handlers

import (
	"io"
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

// Stripe webhook payloads are small; cap reads well above their usual size.
const maxWebhookBodyBytes = 65536

type PaymentHandler struct {
	paymentService *service.PaymentService
	validator      *validator.Validate
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, validator: validator.New()}
}

// CreatePayment godoc
//	@Summary		Start a payment for an order
//	@Description	Creates a Stripe payment intent for the order total and returns the client secret.
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			payment	body		models.CreatePaymentRequest	true	"Order ID and currency"
//	@Success		201		{object}	models.PaymentResponse
//	@Failure		400		{object}	response.ErrorResponse	"Unsupported currency or order already paid"
//	@Failure		404		{object}	response.ErrorResponse	"Order not found"
//	@Security		BearerAuth
//	@Router			/payments [post]
func (h *PaymentHandler) CreatePayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req models.CreatePaymentRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid create payment input")

			return
		}

		payment, err := h.paymentService.CreatePayment(r.Context(), claims.UserID, &req)
		if err != nil {
			logger.Error("Failed to create payment", slog.String("orderId", req.OrderID.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Payment intent created", slog.String("orderId", req.OrderID.String()))
		response.Success(w, http.StatusCreated, payment)
	}
}

func (h *PaymentHandler) GetPayment() http.HandlerFunc {
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

		payment, err := h.paymentService.GetPayment(r.Context(), claims, id)
		if err != nil {
			logger.Error("Failed to get payment", slog.String("paymentId", id.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, payment)
	}
}

func (h *PaymentHandler) ListPayments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		page, pageSize := utils.Pagination(r)

		payments, total, err := h.paymentService.ListPayments(r.Context(), claims.UserID, page, pageSize)
		if err != nil {
			logger.Error("Failed to list payments", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, models.Paginated(payments, total, page, pageSize))
	}
}

// HandleStripeWebhook verifies the Stripe-Signature header against the raw
// body before acting on the event. It is mounted outside the auth middleware.
func (h *PaymentHandler) HandleStripeWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			logger.Warn("Failed to read webhook body", slog.Any("error", err))
			response.Error(w, errors.ValidationError("Unable to read request body"))

			return
		}

		event, err := h.paymentService.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			logger.Warn("Webhook signature verification failed", slog.Any("error", err))
			response.Error(w, errors.UnauthorizedError("Invalid webhook signature"))

			return
		}

		if err := h.paymentService.ProcessWebhookEvent(r.Context(), event); err != nil {
			logger.Error("Failed to process webhook event",
				slog.String("eventType", string(event.Type)),
				slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Webhook event processed", slog.String("eventType", string(event.Type)))
		response.Success(w, http.StatusOK, map[string]string{"received": "true"})
	}
}
