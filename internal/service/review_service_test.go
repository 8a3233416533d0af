package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/google/uuid"
)

func TestPostReviewUpdatesSellerRating(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer := e.addUser("buyer")
	productID := e.addProduct(seller, domain.ProductSold)
	bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)

	review, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
		Message: "great seller",
		Rating:  4,
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if review.SellerID != seller {
		t.Errorf("Review not attributed to the booking's seller")
	}
	if got := e.db.users[seller].Rating; got != 4.0 {
		t.Errorf("Expected seller rating 4.0, got %v", got)
	}
}

func TestPostReviewRatingIsRoundedMean(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer1 := e.addUser("buyer1")
	buyer2 := e.addUser("buyer2")
	buyer3 := e.addUser("buyer3")
	productID := e.addProduct(seller, domain.ProductSold)

	for i, buyer := range []uuid.UUID{buyer1, buyer2, buyer3} {
		bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)
		ratings := []int{5, 4, 4}
		if _, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
			Message: "ok",
			Rating:  ratings[i],
		}); err != nil {
			t.Fatalf("Post %d failed: %v", i, err)
		}
	}

	// (5+4+4)/3 = 4.333... rounds to 4.3
	if got := e.db.users[seller].Rating; got != 4.3 {
		t.Errorf("Expected rounded mean 4.3, got %v", got)
	}
}

func TestPostReviewGuards(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer := e.addUser("buyer")
	other := e.addUser("other")
	productID := e.addProduct(seller, domain.ProductSold)
	bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)

	t.Run("rating out of range", func(t *testing.T) {
		for _, rating := range []int{0, 6, -1} {
			if _, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
				Message: "x", Rating: rating,
			}); !errors.Is(err, ErrRatingOutOfRange) {
				t.Errorf("Rating %d: expected ErrRatingOutOfRange, got %v", rating, err)
			}
		}
	})

	t.Run("empty message", func(t *testing.T) {
		if _, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
			Rating: 3,
		}); !errors.Is(err, ErrEmptyReviewMessage) {
			t.Errorf("Expected ErrEmptyReviewMessage, got %v", err)
		}
	})

	t.Run("self review", func(t *testing.T) {
		if _, err := e.reviewSvc.Post(context.Background(), seller, bookingID, ReviewInput{
			Message: "x", Rating: 3,
		}); !errors.Is(err, ErrSelfReview) {
			t.Errorf("Expected ErrSelfReview, got %v", err)
		}
	})

	t.Run("not the buyer", func(t *testing.T) {
		if _, err := e.reviewSvc.Post(context.Background(), other, bookingID, ReviewInput{
			Message: "x", Rating: 3,
		}); !errors.Is(err, ErrNotBookingBuyer) {
			t.Errorf("Expected ErrNotBookingBuyer, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		if _, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
			Message: "first", Rating: 5,
		}); err != nil {
			t.Fatalf("First post failed: %v", err)
		}
		if _, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
			Message: "second", Rating: 1,
		}); !errors.Is(err, repository.ErrDuplicateReview) {
			t.Errorf("Expected ErrDuplicateReview, got %v", err)
		}
	})
}

func TestPostReviewCompensatesUploadOnInsertFailure(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer := e.addUser("buyer")
	productID := e.addProduct(seller, domain.ProductSold)
	bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)

	// A prior review by the same buyer makes the insert fail after the
	// image upload already happened.
	e.addReview(buyer, seller, bookingID, 4, domain.Image{})

	_, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
		Message: "dup",
		Rating:  3,
		Image:   &ImageUpload{Reader: strings.NewReader("img"), Filename: "a.jpg", ContentType: "image/jpeg"},
	})
	if !errors.Is(err, repository.ErrDuplicateReview) {
		t.Fatalf("Expected ErrDuplicateReview, got %v", err)
	}

	if len(e.blobs.objects) != 0 {
		t.Errorf("Expected uploaded image compensated away, %d objects remain", len(e.blobs.objects))
	}
}

func TestDeleteReviewRestoresNoRatingSentinel(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer := e.addUser("buyer")
	productID := e.addProduct(seller, domain.ProductSold)
	bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)

	review, err := e.reviewSvc.Post(context.Background(), buyer, bookingID, ReviewInput{
		Message: "great", Rating: 5,
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if got := e.db.users[seller].Rating; got != 5.0 {
		t.Fatalf("Expected rating 5.0, got %v", got)
	}

	if err := e.reviewSvc.Delete(context.Background(), buyer, review.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// The last review is gone: back to the no-rating sentinel, not an error.
	if got := e.db.users[seller].Rating; got != domain.NoRating {
		t.Errorf("Expected no-rating sentinel %v, got %v", float64(domain.NoRating), got)
	}
}

func TestDeleteReviewOnlyByAuthor(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer := e.addUser("buyer")
	productID := e.addProduct(seller, domain.ProductSold)
	bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)
	reviewID := e.addReview(buyer, seller, bookingID, 4, domain.Image{})

	if err := e.reviewSvc.Delete(context.Background(), seller, reviewID); !errors.Is(err, ErrNotReviewAuthor) {
		t.Errorf("Expected ErrNotReviewAuthor, got %v", err)
	}
	if err := e.reviewSvc.Delete(context.Background(), buyer, reviewID); err != nil {
		t.Errorf("Author delete failed: %v", err)
	}
}

func TestDeleteReviewCleansUpImageBlob(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer := e.addUser("buyer")
	productID := e.addProduct(seller, domain.ProductSold)
	bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)
	img := domain.Image{BlobID: "recommerce/reviews/r1.jpg", URL: "https://blobs.test/r1"}
	reviewID := e.addReview(buyer, seller, bookingID, 4, img)

	if err := e.reviewSvc.Delete(context.Background(), buyer, reviewID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if e.blobs.objects[img.BlobID] {
		t.Error("Review image blob not deleted")
	}
}

func TestDeleteReviewSurvivesBlobFailure(t *testing.T) {
	e := newEnv()
	seller := e.addUser("seller")
	buyer := e.addUser("buyer")
	productID := e.addProduct(seller, domain.ProductSold)
	bookingID := e.addBooking(productID, buyer, seller, domain.BookingCompleted)
	img := domain.Image{BlobID: "recommerce/reviews/r1.jpg", URL: "https://blobs.test/r1"}
	reviewID := e.addReview(buyer, seller, bookingID, 4, img)

	e.blobs.failDelete = errors.New("bucket unreachable")

	// The row delete already committed; a failing blob delete is logged, not
	// returned.
	if err := e.reviewSvc.Delete(context.Background(), buyer, reviewID); err != nil {
		t.Fatalf("Expected delete to succeed despite blob failure, got %v", err)
	}
	if len(e.db.reviews) != 0 {
		t.Error("Review row should be gone")
	}
}
