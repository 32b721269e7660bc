package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

type ReviewService struct {
	repo      repository.ReviewRepository
	orderRepo repository.OrderRepository
	sanitizer *bluemonday.Policy
}

func NewReviewService(repo repository.ReviewRepository, orderRepo repository.OrderRepository) *ReviewService {
	return &ReviewService{
		repo:      repo,
		orderRepo: orderRepo,
		// Review text is rendered as plain text; strip all markup.
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// CreateReview accepts one review per (user, product, order) triple, and only
// for a delivered order that actually contains the product. New reviews start
// unapproved and surface publicly only after moderation.
func (s *ReviewService) CreateReview(ctx context.Context, userID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error) {

	order, err := s.orderRepo.GetOrderById(ctx, req.OrderID)
	if err != nil {
		return nil, appErrors.NotFoundError("Order not found").WithError(err)
	}

	if order.CustomerID != userID {
		return nil, appErrors.ForbiddenError("You can only review your own orders")
	}

	if order.Status != models.OrderStatusDelivered {
		return nil, appErrors.BusinessRuleError("Only delivered orders can be reviewed")
	}

	found := false

	for _, item := range order.Items {
		if item.ProductID == req.ProductID {
			found = true

			break
		}
	}

	if !found {
		return nil, appErrors.BusinessRuleError("This product is not part of the given order")
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: req.ProductID,
		OrderID:   req.OrderID,
		Rating:    req.Rating,
		Title:     s.sanitizer.Sanitize(req.Title),
		Comment:   s.sanitizer.Sanitize(req.Comment),
	}

	if err := s.repo.CreateReview(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, appErrors.DuplicateEntryError("You have already reviewed this product for this order")
		}

		return nil, appErrors.DatabaseError("Failed to create review").WithError(err)
	}

	return review, nil
}

func (s *ReviewService) ListProductReviews(ctx context.Context, productID uuid.UUID, approvedOnly bool, page, size int) ([]*models.Review, int, error) {

	reviews, total, err := s.repo.ListReviewsByProduct(ctx, productID, approvedOnly, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list reviews").WithError(err)
	}

	return reviews, total, nil
}

// Moderate flips the approval/flag bits and refreshes the product's rolled-up
// rating, since only approved unflagged reviews count toward it.
func (s *ReviewService) Moderate(ctx context.Context, id uuid.UUID, req *models.ModerateReviewRequest) (*models.Review, error) {

	if req.IsApproved == nil && req.IsFlagged == nil {
		return nil, appErrors.BadRequestError("Nothing to moderate")
	}

	review, err := s.repo.ModerateReview(ctx, id, req.IsApproved, req.IsFlagged)
	if err != nil {
		return nil, appErrors.NotFoundError("Review not found").WithError(err)
	}

	if err := s.repo.RefreshProductRating(ctx, review.ProductID); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to refresh product rating",
			slog.String("product_id", review.ProductID.String()), slog.Any("error", err))
	}

	return review, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, claims *models.Claims, id uuid.UUID) error {

	review, err := s.repo.GetReviewByID(ctx, id)
	if err != nil {
		return appErrors.NotFoundError("Review not found").WithError(err)
	}

	if !claims.IsAdmin() && review.UserID != claims.UserID {
		return appErrors.ForbiddenError("You can only delete your own reviews")
	}

	if err := s.repo.DeleteReview(ctx, id); err != nil {
		return appErrors.DatabaseError("Failed to delete review").WithError(err)
	}

	if err := s.repo.RefreshProductRating(ctx, review.ProductID); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to refresh product rating",
			slog.String("product_id", review.ProductID.String()), slog.Any("error", err))
	}

	return nil
}
