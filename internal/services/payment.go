package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	"github.com/dentalmart/marketplace/internal/config"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/realtime"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	stripeClient "github.com/dentalmart/marketplace/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
)

type PaymentService struct {
	repo      repository.PaymentRepository
	orderRepo repository.OrderRepository
	stripe    stripeClient.Client
	hub       *realtime.Hub
	cfg       *config.Stripe
}

func NewPaymentService(repo repository.PaymentRepository, orderRepo repository.OrderRepository, client stripeClient.Client, hub *realtime.Hub, cfg *config.Stripe) *PaymentService {
	return &PaymentService{
		repo:      repo,
		orderRepo: orderRepo,
		stripe:    client,
		hub:       hub,
		cfg:       cfg,
	}
}

// CreatePayment opens a payment intent for the order's server-computed total.
// The amount is never taken from the request.
func (s *PaymentService) CreatePayment(ctx context.Context, customerID uuid.UUID, req *models.CreatePaymentRequest) (*models.PaymentResponse, error) {

	currency := strings.ToLower(req.Currency)
	if !slices.Contains(s.cfg.SupportedCurrencies, currency) {
		return nil, appErrors.ValidationError(fmt.Sprintf("Currency %q is not supported", req.Currency))
	}

	order, err := s.orderRepo.GetOrderById(ctx, req.OrderID)
	if err != nil {
		return nil, appErrors.NotFoundError("Order not found").WithError(err)
	}

	if order.CustomerID != customerID {
		return nil, appErrors.ForbiddenError("You can only pay for your own orders")
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, appErrors.BusinessRuleError("This order is already paid")
	}

	if order.Total <= 0 {
		return nil, appErrors.BusinessRuleError("This order has nothing left to pay")
	}

	amountCents := int64(math.Round(order.Total * 100))
	description := fmt.Sprintf("Order %s", order.ID)

	intent, err := s.stripe.CreatePaymentIntent(amountCents, currency, description, "")
	if err != nil {
		return nil, appErrors.ThirdPartyError("Failed to create payment intent").WithError(err)
	}

	if err := s.orderRepo.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, appErrors.DatabaseError("Failed to attach payment intent to order").WithError(err)
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		CustomerID:  customerID,
		Amount:      order.Total,
		Currency:    currency,
		Description: description,
		Status:      models.PaymentStatusPending,
		StripeID:    intent.ID,
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, appErrors.DatabaseError("Failed to record payment").WithError(err)
	}

	return &models.PaymentResponse{
		Payment:      payment,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, claims *models.Claims, id uuid.UUID) (*models.Payment, error) {

	payment, err := s.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return nil, appErrors.NotFoundError("Payment not found").WithError(err)
	}

	if !claims.IsAdmin() && payment.CustomerID != claims.UserID {
		return nil, appErrors.ForbiddenError("You can only view your own payments")
	}

	return payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, customerID uuid.UUID, page, size int) ([]*models.Payment, int, error) {

	payments, total, err := s.repo.ListPaymentsByCustomer(ctx, customerID, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list payments").WithError(err)
	}

	return payments, total, nil
}

func (s *PaymentService) VerifyWebhookSignature(payload []byte, signature string) (stripeClient.Event, error) {
	return s.stripe.VerifyWebhookSignature(payload, signature)
}

// ProcessWebhookEvent applies gateway callbacks to the payment and order rows.
// A successful charge moves the order into processing; a refund marks it
// refunded. Unknown event types are acknowledged and ignored.
func (s *PaymentService) ProcessWebhookEvent(ctx context.Context, event stripeClient.Event) error {

	logger := middleware.LoggerFromContext(ctx)

	switch event.Type {
	case "payment_intent.succeeded":
		return s.settleIntent(ctx, event, models.PaymentStatusPaid, models.OrderStatusProcessing)

	case "payment_intent.payment_failed":
		return s.settleIntent(ctx, event, models.PaymentStatusFailed, models.OrderStatusPending)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return appErrors.BadRequestError("Malformed webhook payload").WithError(err)
		}

		if charge.PaymentIntent == nil {
			logger.Warn("Refund event without payment intent", slog.String("event_id", event.ID))

			return nil
		}

		return s.applyIntentUpdate(ctx, charge.PaymentIntent.ID, models.PaymentStatusRefunded, models.OrderStatusRefunded)

	default:
		logger.Info("Ignoring webhook event", slog.String("type", string(event.Type)))

		return nil
	}
}

func (s *PaymentService) settleIntent(ctx context.Context, event stripeClient.Event, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) error {

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return appErrors.BadRequestError("Malformed webhook payload").WithError(err)
	}

	return s.applyIntentUpdate(ctx, intent.ID, paymentStatus, orderStatus)
}

func (s *PaymentService) applyIntentUpdate(ctx context.Context, intentID string, paymentStatus models.PaymentStatus, orderStatus models.OrderStatus) error {

	logger := middleware.LoggerFromContext(ctx)

	orderID, err := s.orderRepo.UpdatePaymentStatusByIntent(ctx, intentID, paymentStatus, orderStatus)
	if err != nil {
		return appErrors.DatabaseError("Failed to update order from webhook").WithError(err)
	}

	if err := s.repo.UpdateStatusByStripeID(ctx, intentID, paymentStatus); err != nil {
		logger.Warn("Failed to update payment record from webhook",
			slog.String("intent_id", intentID), slog.Any("error", err))
	}

	order, err := s.orderRepo.GetOrderById(ctx, orderID)
	if err != nil {
		return nil
	}

	s.hub.EmitToUser(order.CustomerID.String(), realtime.Event{
		Type: realtime.EventOrderStatus,
		Payload: map[string]any{
			"order_id":       order.ID,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		},
	})

	return nil
}
