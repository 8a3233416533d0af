package service

import (
	"time"

	"recommerce/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// env wires every service over one shared in-memory store
type env struct {
	db    *memDB
	blobs *fakeBlobs

	users    *fakeUsers
	products *fakeProducts
	bookings *fakeBookings
	reviews  *fakeReviews
	tokens   *fakeTokens

	ratings      *RatingAggregator
	userSvc      UserService
	productSvc   ProductService
	bookingSvc   BookingService
	reviewSvc    ReviewService
	favoritesSvc FavoritesService
	deletionSvc  DeletionService
}

func newEnv() *env {
	db := newMemDB()
	blobs := newFakeBlobs()
	logger := zap.NewNop()

	users := &fakeUsers{db: db}
	products := &fakeProducts{db: db}
	bookings := &fakeBookings{db: db}
	reviews := &fakeReviews{db: db}
	tokens := &fakeTokens{db: db}
	tx := &fakeTx{db: db}

	ratings := NewRatingAggregator(reviews, users, logger)

	return &env{
		db:       db,
		blobs:    blobs,
		users:    users,
		products: products,
		bookings: bookings,
		reviews:  reviews,
		tokens:   tokens,
		ratings:  ratings,

		userSvc:      NewUserService(users, tokens, blobs, "test-secret", logger),
		productSvc:   NewProductService(tx, products, users, blobs, logger),
		bookingSvc:   NewBookingService(tx, bookings, products, users, logger),
		reviewSvc:    NewReviewService(reviews, bookings, users, ratings, blobs, logger),
		favoritesSvc: NewFavoritesService(users, products),
		deletionSvc: NewDeletionService(
			tx, users, products, bookings, reviews, tokens, ratings, blobs, logger,
		),
	}
}

func (e *env) addUser(name string) uuid.UUID {
	id := uuid.New()
	e.db.users[id] = domain.User{
		ID:        id,
		Name:      name,
		Email:     name + "@example.com",
		Role:      domain.RoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return id
}

func (e *env) addProduct(sellerID uuid.UUID, status domain.ProductStatus, images ...domain.Image) uuid.UUID {
	id := uuid.New()
	e.db.products[id] = domain.Product{
		ID:        id,
		SellerID:  sellerID,
		Title:     "Camera",
		Price:     120,
		Category:  "electronics",
		Condition: domain.ConditionUsed,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	e.db.images[id] = append([]domain.Image{}, images...)
	for _, img := range images {
		e.blobs.objects[img.BlobID] = true
	}
	return id
}

func (e *env) addBooking(productID, buyerID, sellerID uuid.UUID, status domain.BookingStatus) uuid.UUID {
	id := uuid.New()
	e.db.bookings[id] = domain.Booking{
		ID:             id,
		ProductID:      productID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		Status:         status,
		PriceAtBooking: 120,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	return id
}

func (e *env) addReview(reviewerID, sellerID, bookingID uuid.UUID, rating int, image domain.Image) uuid.UUID {
	id := uuid.New()
	e.db.reviews[id] = domain.Review{
		ID:         id,
		ReviewerID: reviewerID,
		SellerID:   sellerID,
		BookingID:  bookingID,
		Rating:     rating,
		Message:    "solid",
		Image:      image,
		CreatedAt:  time.Now(),
	}
	if !image.Empty() {
		e.blobs.objects[image.BlobID] = true
	}
	return id
}
