package service

import (
	"context"
	"errors"

	"recommerce/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RatingAggregator keeps users.rating consistent with the review set. Every
// review create or delete is followed by a full recompute of the seller's
// mean rating; an incremental running average would drift over time.
type RatingAggregator struct {
	reviews repository.ReviewRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

// NewRatingAggregator creates a new RatingAggregator
func NewRatingAggregator(reviews repository.ReviewRepository, users repository.UserRepository, logger *zap.Logger) *RatingAggregator {
	return &RatingAggregator{reviews: reviews, users: users, logger: logger}
}

// Recompute reads the seller's full review set and writes the fresh mean
// (rounded to one decimal, 0 when the set is empty) to the user record. It
// runs after the review write commits; nothing else depends on atomicity
// between the review table and the rating field.
func (a *RatingAggregator) Recompute(ctx context.Context, sellerID uuid.UUID) error {
	avg, err := a.reviews.AverageRatingForSeller(ctx, sellerID)
	if err != nil {
		return err
	}

	if err := a.users.SetRating(ctx, sellerID, avg); err != nil {
		// The seller may have been deleted between the aggregate and the
		// write; there is no rating left to maintain.
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	a.logger.Debug("Seller rating recomputed",
		zap.String("seller_id", sellerID.String()),
		zap.Float64("rating", avg),
	)

	return nil
}
