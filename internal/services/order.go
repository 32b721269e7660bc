package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	"github.com/dentalmart/marketplace/internal/config"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/metrics"
	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/realtime"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/dentalmart/marketplace/pkg/sendgrid"
	"github.com/google/uuid"
)

type OrderService struct {
	repo          repository.OrderRepository
	productRepo   repository.ProductRepository
	coupons       *CouponService
	giftCards     *GiftCardService
	users         repository.UserRepository
	notifications repository.NotificationRepository
	email         sendgrid.EmailService
	hub           *realtime.Hub
	pricing       *config.PricingConfig
}

func NewOrderService(
	repo repository.OrderRepository,
	productRepo repository.ProductRepository,
	coupons *CouponService,
	giftCards *GiftCardService,
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	email sendgrid.EmailService,
	hub *realtime.Hub,
	pricing *config.PricingConfig,
) *OrderService {
	return &OrderService{
		repo:          repo,
		productRepo:   productRepo,
		coupons:       coupons,
		giftCards:     giftCards,
		users:         users,
		notifications: notifications,
		email:         email,
		hub:           hub,
		pricing:       pricing,
	}
}

// CreateOrder runs the checkout workflow. Every product is re-fetched and the
// totals are recomputed server side; nothing money-related is taken from the
// client. Stock for all lines is reserved in one transaction, so a failing
// line leaves no partial order behind.
func (s *OrderService) CreateOrder(ctx context.Context, customerID uuid.UUID, req *models.CreateOrderRequest) (*models.Order, error) {

	logger := middleware.LoggerFromContext(ctx)

	items := make([]models.OrderItem, 0, len(req.Items))

	var subtotal float64

	for _, line := range req.Items {

		product, err := s.productRepo.GetProductByID(ctx, line.ProductID)
		if err != nil {
			return nil, appErrors.NotFoundError("Product not found").WithError(err)
		}

		if product.Status != models.ProductStatusActive {
			return nil, appErrors.BusinessRuleError(fmt.Sprintf("Product %q is not available for purchase", product.Name))
		}

		if line.Quantity > product.StockQuantity {
			metrics.StockRejectionsTotal.Inc()

			return nil, appErrors.InsufficientStockError(fmt.Sprintf("Not enough stock for %q", product.Name))
		}

		lineTotal := product.Price * float64(line.Quantity)
		subtotal += lineTotal

		items = append(items, models.OrderItem{
			ID:         uuid.New(),
			ProductID:  product.ID,
			Name:       product.Name,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: round2(lineTotal),
		})
	}

	subtotal = round2(subtotal)

	var (
		discount       float64
		freeShipping   bool
		couponDiscount *models.CouponDiscount
	)

	if req.CouponCode != "" {
		cd, err := s.coupons.Validate(ctx, req.CouponCode, customerID, subtotal)
		if err != nil {
			return nil, err
		}

		couponDiscount = cd
		discount = cd.Amount
		freeShipping = cd.FreeShipping
	}

	tax := round2(subtotal * s.pricing.TaxRate)

	shipping := s.pricing.FlatShippingFee
	if freeShipping || subtotal >= s.pricing.FreeShippingThreshold {
		shipping = 0
	}

	payable := round2(subtotal + tax + shipping - discount)

	var (
		giftCard       *models.GiftCard
		giftCardAmount float64
	)

	if req.GiftCardCode != "" {
		card, applied, err := s.giftCards.Validate(ctx, req.GiftCardCode, payable)
		if err != nil {
			return nil, err
		}

		giftCard = card
		giftCardAmount = applied
	}

	address := req.ShippingAddress

	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		Items:           items,
		Subtotal:        subtotal,
		Tax:             tax,
		Shipping:        shipping,
		Discount:        discount,
		GiftCardAmount:  giftCardAmount,
		Total:           round2(payable - giftCardAmount),
		CouponCode:      req.CouponCode,
		GiftCardCode:    req.GiftCardCode,
		ShippingAddress: &address,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			metrics.StockRejectionsTotal.Inc()

			return nil, appErrors.InsufficientStockError("One of the items sold out before the order could be placed")
		}

		return nil, appErrors.DatabaseError("Failed to create order").WithError(err)
	}

	if giftCard != nil {
		if err := s.giftCards.Redeem(ctx, giftCard, customerID, order.ID, giftCardAmount); err != nil {
			// The balance was spent by a concurrent checkout. Undo the order
			// (restoring stock) rather than shipping an underpaid one.
			logger.Warn("Gift card redemption failed after order creation, rolling order back",
				slog.String("order_id", order.ID.String()),
				slog.String("gift_card_code", req.GiftCardCode))

			if _, cancelErr := s.repo.CancelOrder(ctx, order.ID); cancelErr != nil {
				logger.Error("Failed to roll back order after gift card failure",
					slog.String("order_id", order.ID.String()), slog.Any("error", cancelErr))
			}

			return nil, err
		}
	}

	if req.CouponCode != "" {
		if err := s.coupons.Redeem(ctx, req.CouponCode, customerID, order.ID, discount); err != nil {
			// The order stands; an over-redeemed coupon costs the house the
			// discount, not the customer their order.
			logger.Warn("Coupon redemption failed after order creation",
				slog.String("order_id", order.ID.String()),
				slog.String("coupon_code", req.CouponCode),
				slog.Any("error", err))
		} else if couponDiscount != nil {
			metrics.CouponRedemptionsTotal.WithLabelValues(string(couponDiscount.Type)).Inc()
		}
	}

	metrics.OrdersPlacedTotal.Inc()

	s.hub.EmitToUser(customerID.String(), realtime.Event{
		Type: realtime.EventOrderStatus,
		Payload: map[string]any{
			"order_id": order.ID,
			"status":   order.Status,
		},
	})

	s.sendOrderEmail(ctx, order, "Order confirmation",
		fmt.Sprintf("Thanks for your order! Order %s for %.2f has been received and is pending payment.", order.ID, order.Total))

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, claims *models.Claims, id uuid.UUID) (*models.Order, error) {

	order, err := s.repo.GetOrderById(ctx, id)
	if err != nil {
		return nil, appErrors.NotFoundError("Order not found").WithError(err)
	}

	if !claims.IsAdmin() && order.CustomerID != claims.UserID {
		return nil, appErrors.ForbiddenError("You can only view your own orders")
	}

	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, customerID uuid.UUID, page, size int) ([]models.Order, int, error) {

	orders, total, err := s.repo.ListOrdersByCustomer(ctx, customerID, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list orders").WithError(err)
	}

	return orders, total, nil
}

// UpdateStatus is the admin-side status override, with optional tracking
// fields. The customer is notified over the realtime channel.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, req *models.UpdateOrderStatusRequest) (*models.Order, error) {

	if req.Status == models.OrderStatusCancelled {
		return nil, appErrors.BadRequestError("Use the cancel endpoint to cancel an order")
	}

	order, err := s.repo.UpdateOrderStatus(ctx, id, req)
	if err != nil {
		return nil, appErrors.NotFoundError("Order not found").WithError(err)
	}

	s.hub.EmitToUser(order.CustomerID.String(), realtime.Event{
		Type: realtime.EventOrderStatus,
		Payload: map[string]any{
			"order_id":        order.ID,
			"status":          order.Status,
			"tracking_number": order.TrackingNumber,
			"carrier":         order.Carrier,
		},
	})

	if order.Status == models.OrderStatusShipped {
		s.sendOrderEmail(ctx, order, "Your order has shipped",
			fmt.Sprintf("Order %s is on its way. Tracking: %s (%s).", order.ID, order.TrackingNumber, order.Carrier))
	}

	return order, nil
}

// CancelOrder flips the order to cancelled and puts the reserved stock back.
// The repository's conditional update makes the restore happen at most once
// no matter how many cancel requests race.
func (s *OrderService) CancelOrder(ctx context.Context, claims *models.Claims, id uuid.UUID) (*models.Order, error) {

	order, err := s.repo.GetOrderById(ctx, id)
	if err != nil {
		return nil, appErrors.NotFoundError("Order not found").WithError(err)
	}

	if !claims.IsAdmin() && order.CustomerID != claims.UserID {
		return nil, appErrors.ForbiddenError("You can only cancel your own orders")
	}

	if !claims.IsAdmin() && (order.Status == models.OrderStatusShipped || order.Status == models.OrderStatusDelivered) {
		return nil, appErrors.BusinessRuleError("Shipped or delivered orders can no longer be cancelled")
	}

	cancelled, err := s.repo.CancelOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotCancellable) {
			return nil, appErrors.BusinessRuleError("This order has already been cancelled or refunded")
		}

		return nil, appErrors.DatabaseError("Failed to cancel order").WithError(err)
	}

	metrics.OrdersCancelledTotal.Inc()

	s.hub.EmitToUser(cancelled.CustomerID.String(), realtime.Event{
		Type: realtime.EventOrderStatus,
		Payload: map[string]any{
			"order_id": cancelled.ID,
			"status":   cancelled.Status,
		},
	})

	s.sendOrderEmail(ctx, cancelled, "Order cancelled",
		fmt.Sprintf("Order %s has been cancelled.", cancelled.ID))

	return cancelled, nil
}

// sendOrderEmail delivers a transactional email and records the attempt.
// Failures are logged and swallowed; email never fails an order operation.
func (s *OrderService) sendOrderEmail(ctx context.Context, order *models.Order, subject, content string) {

	logger := middleware.LoggerFromContext(ctx)

	user, err := s.users.GetUserById(ctx, order.CustomerID)
	if err != nil {
		logger.Warn("Failed to look up customer for order email",
			slog.String("order_id", order.ID.String()), slog.Any("error", err))

		return
	}

	notification := &models.Notification{
		Type:      models.NotificationTypeEmail,
		Recipient: user.Email,
		Subject:   subject,
		Content:   content,
		Status:    models.NotificationStatusPending,
	}

	if err := s.notifications.CreateNotification(ctx, notification); err != nil {
		logger.Warn("Failed to record order notification", slog.Any("error", err))
	}

	sendErr := s.email.Send(ctx, &models.EmailNotificationRequest{
		Subject:   subject,
		Content:   content,
		Recipient: user.Email,
	})

	status := models.NotificationStatusSent

	errText := ""
	if sendErr != nil {
		status = models.NotificationStatusFailed
		errText = sendErr.Error()

		logger.Warn("Failed to send order email",
			slog.String("order_id", order.ID.String()), slog.Any("error", sendErr))
	}

	if notification.ID != uuid.Nil {
		if err := s.notifications.UpdateNotificationStatus(ctx, notification.ID, status, errText); err != nil {
			logger.Warn("Failed to update notification status", slog.Any("error", err))
		}
	}
}
