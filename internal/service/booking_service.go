package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProductUnavailable  = fmt.Errorf("product is not available for booking: %w", domain.ErrConflict)
	ErrOwnProductBooking   = fmt.Errorf("you cannot book your own product: %w", domain.ErrInvalid)
	ErrAlreadyBooked       = fmt.Errorf("you have already booked this product: %w", domain.ErrConflict)
	ErrBookingNotPending   = fmt.Errorf("booking is not pending: %w", domain.ErrConflict)
	ErrBookingNotConfirmed = fmt.Errorf("booking must be confirmed before completing: %w", domain.ErrConflict)
	ErrBookingCompleted    = fmt.Errorf("booking is already completed: %w", domain.ErrConflict)
	ErrBookingCancelled    = fmt.Errorf("booking is already cancelled: %w", domain.ErrConflict)
	ErrOnlySeller          = fmt.Errorf("only the seller may do this: %w", domain.ErrForbidden)
	ErrNotBookingParty     = fmt.Errorf("you are not a party to this booking: %w", domain.ErrForbidden)
)

// BookingService is the booking state machine. Each transition executes as
// one atomic unit: the booking status change, the paired product status
// change and any collection updates commit together or not at all. Status
// writes are compare-and-commit, so concurrent transitions on the same
// product serialize on the product row and the loser gets a conflict.
type BookingService interface {
	Create(ctx context.Context, productID, buyerID uuid.UUID) (*domain.Booking, error)
	Confirm(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error)
	Complete(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error)
	Get(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Booking, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Booking, error)
}

type bookingService struct {
	tx       repository.TxManager
	bookings repository.BookingRepository
	products repository.ProductRepository
	users    repository.UserRepository
	logger   *zap.Logger
}

// NewBookingService creates a new instance of BookingService
func NewBookingService(
	tx repository.TxManager,
	bookings repository.BookingRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	logger *zap.Logger,
) BookingService {
	return &bookingService{
		tx:       tx,
		bookings: bookings,
		products: products,
		users:    users,
		logger:   logger,
	}
}

// Create books an available product for the buyer. The booking insert and
// the product's available->booked flip happen in one transaction; the flip
// re-checks the status at write time, so two concurrent creates on the same
// product cannot both succeed.
func (s *bookingService) Create(ctx context.Context, productID, buyerID uuid.UUID) (*domain.Booking, error) {
	var booking *domain.Booking

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return err
		}

		if product.Status != domain.ProductAvailable {
			return ErrProductUnavailable
		}

		if product.SellerID == buyerID {
			return ErrOwnProductBooking
		}

		// Prevent duplicate booking by the same buyer
		if _, err := s.bookings.FindActiveByProductAndBuyer(ctx, productID, buyerID); err == nil {
			return ErrAlreadyBooked
		} else if !errors.Is(err, repository.ErrBookingNotFound) {
			return err
		}

		now := time.Now()
		booking = &domain.Booking{
			ID:             uuid.New(),
			ProductID:      productID,
			BuyerID:        buyerID,
			SellerID:       product.SellerID, // denormalized copy, see domain.Booking
			Status:         domain.BookingPending,
			PriceAtBooking: product.Price,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.bookings.Create(ctx, booking); err != nil {
			return err
		}

		// The availability check above is only advisory; this conditional
		// update is the real serialization point between concurrent creates.
		if err := s.products.UpdateStatus(ctx, productID, domain.ProductAvailable, domain.ProductBooked); err != nil {
			if errors.Is(err, repository.ErrProductStatusConflict) {
				return ErrProductUnavailable
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("product_id", productID.String()),
		zap.String("buyer_id", buyerID.String()),
	)

	return booking, nil
}

// Confirm moves a pending booking to confirmed. Only the seller may confirm.
// Every other pending booking for the same product is cancelled in the same
// transaction, so a crash cannot leave a half-confirmed product.
func (s *bookingService) Confirm(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error) {
	var booking *domain.Booking

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if booking.SellerID != actorID {
			return ErrOnlySeller
		}

		if booking.Status != domain.BookingPending {
			return ErrBookingNotPending
		}

		if err := s.bookings.UpdateStatus(ctx, bookingID, domain.BookingPending, domain.BookingConfirmed); err != nil {
			if errors.Is(err, repository.ErrBookingStatusConflict) {
				return ErrBookingNotPending
			}
			return err
		}
		booking.Status = domain.BookingConfirmed

		cancelled, err := s.bookings.CancelOtherPending(ctx, booking.ProductID, bookingID)
		if err != nil {
			return err
		}
		if cancelled > 0 {
			s.logger.Info("Auto-cancelled competing bookings",
				zap.String("product_id", booking.ProductID.String()),
				zap.Int64("count", cancelled),
			)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// Cancel moves an active booking to cancelled and releases the product back
// to available. Buyer and seller may both cancel; terminal bookings may not
// be cancelled again.
func (s *bookingService) Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error) {
	var booking *domain.Booking

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if booking.BuyerID != actorID && booking.SellerID != actorID {
			return ErrNotBookingParty
		}

		switch booking.Status {
		case domain.BookingCompleted:
			return ErrBookingCompleted
		case domain.BookingCancelled:
			return ErrBookingCancelled
		}

		if err := s.bookings.CancelActive(ctx, bookingID); err != nil {
			if errors.Is(err, repository.ErrBookingStatusConflict) {
				return ErrBookingCancelled
			}
			return err
		}
		booking.Status = domain.BookingCancelled

		// This booking was the product's single active booking, so the
		// product must currently be booked.
		if err := s.products.UpdateStatus(ctx, booking.ProductID, domain.ProductBooked, domain.ProductAvailable); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actorID.String()),
	)

	return booking, nil
}

// Complete moves a confirmed booking to completed: the product becomes sold
// and lands in the buyer's purchased and the seller's sold collections, all
// in one transaction.
func (s *bookingService) Complete(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error) {
	var booking *domain.Booking

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if booking.SellerID != actorID {
			return ErrOnlySeller
		}

		if booking.Status != domain.BookingConfirmed {
			return ErrBookingNotConfirmed
		}

		if err := s.bookings.UpdateStatus(ctx, bookingID, domain.BookingConfirmed, domain.BookingCompleted); err != nil {
			if errors.Is(err, repository.ErrBookingStatusConflict) {
				return ErrBookingNotConfirmed
			}
			return err
		}
		booking.Status = domain.BookingCompleted

		if err := s.products.UpdateStatus(ctx, booking.ProductID, domain.ProductBooked, domain.ProductSold); err != nil {
			return err
		}

		if err := s.users.AddTrade(ctx, booking.BuyerID, booking.ProductID, domain.TradePurchased); err != nil {
			return err
		}
		if err := s.users.AddTrade(ctx, booking.SellerID, booking.ProductID, domain.TradeSold); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking completed",
		zap.String("booking_id", bookingID.String()),
		zap.String("product_id", booking.ProductID.String()),
	)

	return booking, nil
}

// Get returns a booking to its buyer or seller
func (s *bookingService) Get(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.BuyerID != actorID && booking.SellerID != actorID {
		return nil, ErrNotBookingParty
	}

	return booking, nil
}

// ListForBuyer returns the bookings the user placed
func (s *bookingService) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Booking, error) {
	return s.bookings.ListByBuyer(ctx, buyerID)
}

// ListForSeller returns the bookings on the user's listings
func (s *bookingService) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Booking, error) {
	return s.bookings.ListBySeller(ctx, sellerID)
}
