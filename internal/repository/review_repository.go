package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recommerce/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrReviewNotFound  = fmt.Errorf("review %w", domain.ErrNotFound)
	ErrDuplicateReview = fmt.Errorf("review already exists for this booking: %w", domain.ErrConflict)
)

// ReviewRepository defines the interface for review data access plus the
// aggregate read backing the rating recomputation.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	FindByReviewerAndBooking(ctx context.Context, reviewerID, bookingID uuid.UUID) (*domain.Review, error)
	ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]*domain.Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	AverageRatingForSeller(ctx context.Context, sellerID uuid.UUID) (float64, error)
	SellersReviewedBy(ctx context.Context, reviewerID uuid.UUID) ([]uuid.UUID, error)
	ImagesByUser(ctx context.Context, userID uuid.UUID) ([]domain.Image, error)
}

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

const reviewColumns = `id, reviewer_id, seller_id, booking_id, image_blob_id, image_url, message, rating, created_at`

// Create inserts a new review. The unique (reviewer, booking) index enforces
// the one-review-per-booking rule even under concurrent submissions.
func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, reviewer_id, seller_id, booking_id, image_blob_id, image_url, message, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := querier(ctx, r.db).ExecContext(
		ctx,
		query,
		review.ID,
		review.ReviewerID,
		review.SellerID,
		review.BookingID,
		review.Image.BlobID,
		review.Image.URL,
		review.Message,
		review.Rating,
		review.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// FindByID retrieves a review by ID
func (r *reviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)

	review, err := scanReview(querier(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to find review by ID: %w", err)
	}

	return review, nil
}

// FindByReviewerAndBooking retrieves the review a user wrote for a booking
func (r *reviewRepository) FindByReviewerAndBooking(ctx context.Context, reviewerID, bookingID uuid.UUID) (*domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE reviewer_id = $1 AND booking_id = $2`, reviewColumns)

	review, err := scanReview(querier(ctx, r.db).QueryRowContext(ctx, query, reviewerID, bookingID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}

	return review, nil
}

// ListByReviewer retrieves all reviews written by a user, newest first
func (r *reviewRepository) ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]*domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE reviewer_id = $1 ORDER BY created_at DESC`, reviewColumns)

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// Delete removes a review by ID
func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := querier(ctx, r.db).ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrReviewNotFound
	}

	return nil
}

// DeleteByUser removes all reviews written by or about a user
func (r *reviewRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := querier(ctx, r.db).ExecContext(ctx,
		`DELETE FROM reviews WHERE reviewer_id = $1 OR seller_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete reviews by user: %w", err)
	}
	return nil
}

// AverageRatingForSeller recomputes the mean rating over the full review set
// for a seller, rounded to one decimal place. Returns the no-rating sentinel
// (0) when the seller has no reviews. Reading the whole set instead of
// keeping a running average avoids float drift.
func (r *reviewRepository) AverageRatingForSeller(ctx context.Context, sellerID uuid.UUID) (float64, error) {
	query := `SELECT COALESCE(ROUND(AVG(rating)::numeric, 1), 0) FROM reviews WHERE seller_id = $1`

	var avg float64
	if err := querier(ctx, r.db).QueryRowContext(ctx, query, sellerID).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to aggregate seller rating: %w", err)
	}

	return avg, nil
}

// SellersReviewedBy returns the distinct sellers the user has reviewed, so
// their ratings can be recomputed after the user's reviews are deleted.
func (r *reviewRepository) SellersReviewedBy(ctx context.Context, reviewerID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT seller_id FROM reviews WHERE reviewer_id = $1 AND seller_id <> $1`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewed sellers: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ImagesByUser returns the blob references of review images attached to
// reviews written by or about the user, for pre-delete snapshotting.
func (r *reviewRepository) ImagesByUser(ctx context.Context, userID uuid.UUID) ([]domain.Image, error) {
	query := `
		SELECT image_blob_id, image_url FROM reviews
		WHERE (reviewer_id = $1 OR seller_id = $1) AND image_blob_id <> ''
	`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review images: %w", err)
	}
	defer rows.Close()

	images := []domain.Image{}
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.BlobID, &img.URL); err != nil {
			return nil, fmt.Errorf("failed to scan review image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func scanReview(row interface{ Scan(dest ...any) error }) (*domain.Review, error) {
	rv := &domain.Review{}
	err := row.Scan(
		&rv.ID,
		&rv.ReviewerID,
		&rv.SellerID,
		&rv.BookingID,
		&rv.Image.BlobID,
		&rv.Image.URL,
		&rv.Message,
		&rv.Rating,
		&rv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rv, nil
}
