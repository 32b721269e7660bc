package service

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/google/uuid"
)

// Side-by-side product comparison holds at most this many products.
const maxComparisonItems = 4

type WishlistService struct {
	repo        repository.WishlistRepository
	productRepo repository.ProductRepository
}

func NewWishlistService(repo repository.WishlistRepository, productRepo repository.ProductRepository) *WishlistService {
	return &WishlistService{repo: repo, productRepo: productRepo}
}

func (s *WishlistService) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) (*models.WishlistItem, error) {

	if _, err := s.productRepo.GetProductByID(ctx, productID); err != nil {
		return nil, appErrors.NotFoundError("Product not found").WithError(err)
	}

	item := &models.WishlistItem{UserID: userID, ProductID: productID}

	if err := s.repo.AddToWishlist(ctx, item); err != nil {
		if errors.Is(err, repository.ErrAlreadyInList) {
			return nil, appErrors.DuplicateEntryError("Product is already in your wishlist")
		}

		return nil, appErrors.DatabaseError("Failed to add to wishlist").WithError(err)
	}

	return item, nil
}

func (s *WishlistService) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {

	if err := s.repo.RemoveFromWishlist(ctx, userID, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Product is not in your wishlist")
		}

		return appErrors.DatabaseError("Failed to remove from wishlist").WithError(err)
	}

	return nil
}

func (s *WishlistService) ListWishlist(ctx context.Context, userID uuid.UUID) ([]*models.WishlistItem, error) {

	items, err := s.repo.ListWishlist(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list wishlist").WithError(err)
	}

	return items, nil
}

func (s *WishlistService) AddToComparison(ctx context.Context, userID, productID uuid.UUID) (*models.ComparisonItem, error) {

	if _, err := s.productRepo.GetProductByID(ctx, productID); err != nil {
		return nil, appErrors.NotFoundError("Product not found").WithError(err)
	}

	count, err := s.repo.CountComparison(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to check comparison list").WithError(err)
	}

	if count >= maxComparisonItems {
		return nil, appErrors.BusinessRuleError("The comparison list is full; remove a product first")
	}

	item := &models.ComparisonItem{UserID: userID, ProductID: productID}

	if err := s.repo.AddToComparison(ctx, item); err != nil {
		if errors.Is(err, repository.ErrAlreadyInList) {
			return nil, appErrors.DuplicateEntryError("Product is already in your comparison list")
		}

		return nil, appErrors.DatabaseError("Failed to add to comparison").WithError(err)
	}

	return item, nil
}

func (s *WishlistService) RemoveFromComparison(ctx context.Context, userID, productID uuid.UUID) error {

	if err := s.repo.RemoveFromComparison(ctx, userID, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Product is not in your comparison list")
		}

		return appErrors.DatabaseError("Failed to remove from comparison").WithError(err)
	}

	return nil
}

func (s *WishlistService) ListComparison(ctx context.Context, userID uuid.UUID) ([]*models.ComparisonItem, error) {

	items, err := s.repo.ListComparison(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list comparison").WithError(err)
	}

	return items, nil
}
