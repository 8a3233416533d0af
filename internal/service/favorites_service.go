package service

import (
	"context"
	"errors"
	"fmt"

	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrFavoriteUnavailable = fmt.Errorf("product is not available: %w", domain.ErrConflict)
	ErrOwnProductFavorite  = fmt.Errorf("you cannot favorite your own product: %w", domain.ErrInvalid)
)

// FavoritesService maintains the user's favorites set. Add and Remove are
// idempotent: duplicate adds and removals of non-members are no-ops.
type FavoritesService interface {
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error)
}

type favoritesService struct {
	users    repository.UserRepository
	products repository.ProductRepository
}

// NewFavoritesService creates a new instance of FavoritesService
func NewFavoritesService(users repository.UserRepository, products repository.ProductRepository) FavoritesService {
	return &favoritesService{users: users, products: products}
}

// Add puts a product into the user's favorites set
func (s *favoritesService) Add(ctx context.Context, userID, productID uuid.UUID) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	if product.Status != domain.ProductAvailable {
		return ErrFavoriteUnavailable
	}

	if product.SellerID == userID {
		return ErrOwnProductFavorite
	}

	return s.users.AddFavorite(ctx, userID, productID)
}

// Remove takes a product out of the user's favorites set. Removing a product
// that was never a favorite succeeds with no state change.
func (s *favoritesService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return s.users.RemoveFavorite(ctx, userID, productID)
}

// List returns the user's favorite products. Favorites are scrubbed whenever
// a product is deleted, so every id here still resolves; a product deleted
// mid-listing is simply skipped.
func (s *favoritesService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error) {
	ids, err := s.users.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		product, err := s.products.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				continue
			}
			return nil, err
		}
		products = append(products, product)
	}

	return products, nil
}
