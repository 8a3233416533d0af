package service

import (
	"context"
	"errors"
	"fmt"

	"recommerce/internal/blob"
	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProductHasActiveBooking = fmt.Errorf("product has an active booking: %w", domain.ErrConflict)
	ErrNotProductOwner         = fmt.Errorf("you are not the seller of this product: %w", domain.ErrForbidden)
)

// DeletionService orchestrates cascading deletes. Each delete is a two-phase
// saga: blob references are snapshotted first, then all row deletions commit
// in a single transaction, and only after the commit are the snapshotted
// blobs deleted from the store. Blob deletion is best-effort; a failure
// orphans an object in the bucket but never resurrects rows.
type DeletionService interface {
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
	DeleteProduct(ctx context.Context, productID, actorID uuid.UUID) error
	DeleteProductByAdmin(ctx context.Context, productID uuid.UUID) error
}

type deletionService struct {
	tx       repository.TxManager
	users    repository.UserRepository
	products repository.ProductRepository
	bookings repository.BookingRepository
	reviews  repository.ReviewRepository
	tokens   repository.RefreshTokenRepository
	ratings  *RatingAggregator
	blobs    blob.Store
	logger   *zap.Logger
}

// NewDeletionService creates a new instance of DeletionService
func NewDeletionService(
	tx repository.TxManager,
	users repository.UserRepository,
	products repository.ProductRepository,
	bookings repository.BookingRepository,
	reviews repository.ReviewRepository,
	tokens repository.RefreshTokenRepository,
	ratings *RatingAggregator,
	blobs blob.Store,
	logger *zap.Logger,
) DeletionService {
	return &deletionService{
		tx:       tx,
		users:    users,
		products: products,
		bookings: bookings,
		reviews:  reviews,
		tokens:   tokens,
		ratings:  ratings,
		blobs:    blobs,
		logger:   logger,
	}
}

// DeleteAccount removes a user and every row that references them: their
// bookings (both sides), their reviews and reviews about them, their
// favorites, mentions of their products in other users' favorites and trade
// histories, their listings, and their refresh tokens. After the commit the
// ratings of sellers the user had reviewed are recomputed, since those
// reviews no longer exist.
func (s *deletionService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	// Phase one: snapshot everything needed after the commit. Once the rows
	// are gone these reads are impossible.
	blobs := []domain.Image{}
	if !user.Avatar.Empty() {
		blobs = append(blobs, user.Avatar)
	}

	productImages, err := s.products.ImagesBySeller(ctx, userID)
	if err != nil {
		return err
	}
	blobs = append(blobs, productImages...)

	reviewImages, err := s.reviews.ImagesByUser(ctx, userID)
	if err != nil {
		return err
	}
	blobs = append(blobs, reviewImages...)

	reviewedSellers, err := s.reviews.SellersReviewedBy(ctx, userID)
	if err != nil {
		return err
	}

	listings, err := s.products.ListBySeller(ctx, userID)
	if err != nil {
		return err
	}
	productIDs := make([]uuid.UUID, len(listings))
	for i, p := range listings {
		productIDs[i] = p.ID
	}

	// Phase two: every row deletion in one transaction. Children go before
	// parents so no foreign key is ever left dangling mid-cascade.
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.bookings.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.reviews.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.users.RemoveFavoriteEverywhere(ctx, productIDs); err != nil {
			return err
		}
		if err := s.users.RemoveFavoritesOfUser(ctx, userID); err != nil {
			return err
		}
		if err := s.users.DeleteTradesForProducts(ctx, productIDs); err != nil {
			return err
		}
		if err := s.users.DeleteTradesForUser(ctx, userID); err != nil {
			return err
		}
		if err := s.products.DeleteBySeller(ctx, userID); err != nil {
			return err
		}
		if err := s.tokens.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return s.users.Delete(ctx, userID)
	})
	if err != nil {
		return err
	}

	// Phase three: post-commit cleanup. Failures here are logged, never
	// propagated; the database state is already final.
	for _, sellerID := range reviewedSellers {
		if err := s.ratings.Recompute(ctx, sellerID); err != nil {
			s.logger.Error("Rating recompute failed after account deletion",
				zap.String("seller_id", sellerID.String()),
				zap.Error(err),
			)
		}
	}

	s.deleteBlobs(ctx, blobs)

	s.logger.Info("Account deleted",
		zap.String("user_id", userID.String()),
		zap.Int("products", len(productIDs)),
		zap.Int("blobs", len(blobs)),
	)

	return nil
}

// DeleteProduct removes a listing on behalf of its seller. A product with an
// active booking cannot be deleted; the booking must be cancelled or
// completed first.
func (s *deletionService) DeleteProduct(ctx context.Context, productID, actorID uuid.UUID) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	if product.SellerID != actorID {
		return ErrNotProductOwner
	}

	if product.Status == domain.ProductBooked {
		return ErrProductHasActiveBooking
	}

	return s.deleteProductCascade(ctx, product)
}

// DeleteProductByAdmin removes any listing regardless of its state, including
// a booked one; its bookings are deleted along with it.
func (s *deletionService) DeleteProductByAdmin(ctx context.Context, productID uuid.UUID) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	return s.deleteProductCascade(ctx, product)
}

// deleteProductCascade runs the shared saga: snapshot image blobs, delete the
// product's bookings, favorites mentions, trade mentions and the product row
// in one transaction, then clean up blobs. Reviews are left in place; they
// belong to the seller's reputation, not to the listing.
func (s *deletionService) deleteProductCascade(ctx context.Context, product *domain.Product) error {
	ids := []uuid.UUID{product.ID}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.bookings.DeleteByProduct(ctx, product.ID); err != nil {
			return err
		}
		if err := s.users.RemoveFavoriteEverywhere(ctx, ids); err != nil {
			return err
		}
		if err := s.users.DeleteTradesForProducts(ctx, ids); err != nil {
			return err
		}
		if err := s.products.Delete(ctx, product.ID); err != nil {
			return err
		}

		// The seller flag mirrors "has at least one listing".
		remaining, err := s.products.CountBySeller(ctx, product.SellerID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := s.users.SetSellerFlag(ctx, product.SellerID, false); err != nil {
				if !errors.Is(err, repository.ErrUserNotFound) {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, product.Images)

	s.logger.Info("Product deleted",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", product.SellerID.String()),
	)

	return nil
}

func (s *deletionService) deleteBlobs(ctx context.Context, images []domain.Image) {
	for _, img := range images {
		if img.Empty() {
			continue
		}
		if err := s.blobs.Delete(ctx, img.BlobID); err != nil {
			s.logger.Warn("Blob delete failed; object orphaned",
				zap.String("blob_id", img.BlobID),
				zap.Error(err),
			)
		}
	}
}
