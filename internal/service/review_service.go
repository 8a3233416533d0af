package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"recommerce/internal/blob"
	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSelfReview      = fmt.Errorf("you cannot post a review for yourself: %w", domain.ErrInvalid)
	ErrNotBookingBuyer = fmt.Errorf("you did not buy on this booking: %w", domain.ErrInvalid)
	ErrRatingOutOfRange = fmt.Errorf("rating must be between %d and %d: %w",
		domain.MinRating, domain.MaxRating, domain.ErrInvalid)
	ErrEmptyReviewMessage = fmt.Errorf("review message is required: %w", domain.ErrInvalid)
	ErrNotReviewAuthor    = fmt.Errorf("you are not the author of this review: %w", domain.ErrForbidden)
)

// ImageUpload carries one image file into a service operation
type ImageUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// ReviewInput carries the fields of a new review
type ReviewInput struct {
	Message string
	Rating  int
	Image   *ImageUpload
}

// ReviewService creates and deletes reviews and keeps the seller rating
// aggregate in step with every change.
type ReviewService interface {
	Post(ctx context.Context, reviewerID, bookingID uuid.UUID, in ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, reviewerID, reviewID uuid.UUID) error
	Get(ctx context.Context, reviewID uuid.UUID) (*domain.Review, error)
	ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]*domain.Review, error)
}

type reviewService struct {
	reviews  repository.ReviewRepository
	bookings repository.BookingRepository
	users    repository.UserRepository
	ratings  *RatingAggregator
	blobs    blob.Store
	logger   *zap.Logger
}

// NewReviewService creates a new instance of ReviewService
func NewReviewService(
	reviews repository.ReviewRepository,
	bookings repository.BookingRepository,
	users repository.UserRepository,
	ratings *RatingAggregator,
	blobs blob.Store,
	logger *zap.Logger,
) ReviewService {
	return &reviewService{
		reviews:  reviews,
		bookings: bookings,
		users:    users,
		ratings:  ratings,
		blobs:    blobs,
		logger:   logger,
	}
}

// Post creates a review for a booking's seller, written by its buyer, and
// recomputes the seller's rating. The optional image is uploaded before the
// insert; if the insert then fails the fresh blob is deleted best-effort so
// it does not linger unreferenced.
func (s *reviewService) Post(ctx context.Context, reviewerID, bookingID uuid.UUID, in ReviewInput) (*domain.Review, error) {
	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return nil, ErrRatingOutOfRange
	}
	if in.Message == "" {
		return nil, ErrEmptyReviewMessage
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	seller, err := s.users.FindByID(ctx, booking.SellerID)
	if err != nil {
		return nil, err
	}

	if reviewerID == seller.ID {
		return nil, ErrSelfReview
	}

	if booking.BuyerID != reviewerID {
		return nil, ErrNotBookingBuyer
	}

	// Pre-check for a duplicate; the unique index backs this up under
	// concurrent submissions.
	if _, err := s.reviews.FindByReviewerAndBooking(ctx, reviewerID, bookingID); err == nil {
		return nil, repository.ErrDuplicateReview
	} else if !errors.Is(err, repository.ErrReviewNotFound) {
		return nil, err
	}

	var image domain.Image
	if in.Image != nil {
		obj, err := s.blobs.Upload(ctx, in.Image.Reader, "recommerce/reviews", in.Image.Filename, in.Image.ContentType)
		if err != nil {
			return nil, fmt.Errorf("image upload failed: %w", err)
		}
		image = domain.Image{BlobID: obj.ID, URL: obj.URL}
	}

	review := &domain.Review{
		ID:         uuid.New(),
		ReviewerID: reviewerID,
		SellerID:   booking.SellerID,
		BookingID:  bookingID,
		Image:      image,
		Message:    in.Message,
		Rating:     in.Rating,
		CreatedAt:  time.Now(),
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		// The upload cannot be rolled back by the store; compensate.
		if !image.Empty() {
			if delErr := s.blobs.Delete(ctx, image.BlobID); delErr != nil {
				s.logger.Warn("Failed to delete orphaned review image",
					zap.String("blob_id", image.BlobID),
					zap.Error(delErr),
				)
			}
		}
		return nil, err
	}

	if err := s.ratings.Recompute(ctx, booking.SellerID); err != nil {
		s.logger.Error("Rating recompute failed after review create",
			zap.String("seller_id", booking.SellerID.String()),
			zap.Error(err),
		)
	}

	return review, nil
}

// Delete removes a review written by the given user and recomputes the
// seller's rating. The review image blob is deleted only after the database
// delete succeeded, and its failure is logged, never propagated.
func (s *reviewService) Delete(ctx context.Context, reviewerID, reviewID uuid.UUID) error {
	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return err
	}

	if review.ReviewerID != reviewerID {
		return ErrNotReviewAuthor
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return err
	}

	if err := s.ratings.Recompute(ctx, review.SellerID); err != nil {
		s.logger.Error("Rating recompute failed after review delete",
			zap.String("seller_id", review.SellerID.String()),
			zap.Error(err),
		)
	}

	if !review.Image.Empty() {
		if err := s.blobs.Delete(ctx, review.Image.BlobID); err != nil {
			s.logger.Warn("Blob delete failed; object orphaned",
				zap.String("blob_id", review.Image.BlobID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Get returns a single review
func (s *reviewService) Get(ctx context.Context, reviewID uuid.UUID) (*domain.Review, error) {
	return s.reviews.FindByID(ctx, reviewID)
}

// ListByReviewer returns all reviews the user has written
func (s *reviewService) ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]*domain.Review, error) {
	return s.reviews.ListByReviewer(ctx, reviewerID)
}
