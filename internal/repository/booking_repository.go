package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recommerce/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound = fmt.Errorf("booking %w", domain.ErrNotFound)

	// ErrBookingStatusConflict is returned when a compare-and-commit status
	// transition matched no row: the booking already left the expected state.
	ErrBookingStatusConflict = fmt.Errorf("booking status %w", domain.ErrConflict)
)

// BookingRepository defines the interface for booking data access. All status
// transitions are compare-and-commit updates keyed on the expected prior
// status; the state machine in the service layer decides which transitions
// are legal.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	FindActiveByProductAndBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) error
	CancelActive(ctx context.Context, id uuid.UUID) error
	CancelOtherPending(ctx context.Context, productID, exceptID uuid.UUID) (int64, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Booking, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Booking, error)
	DeleteByProduct(ctx context.Context, productID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type bookingRepository struct {
	db *sql.DB
}

// NewBookingRepository creates a new instance of BookingRepository
func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `id, product_id, buyer_id, seller_id, status, price_at_booking, created_at, updated_at`

// Create inserts a new booking using parameterized queries
func (r *bookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (id, product_id, buyer_id, seller_id, status, price_at_booking, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := querier(ctx, r.db).ExecContext(
		ctx,
		query,
		booking.ID,
		booking.ProductID,
		booking.BuyerID,
		booking.SellerID,
		string(booking.Status),
		booking.PriceAtBooking,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// FindByID retrieves a booking by ID
func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)

	booking, err := scanBooking(querier(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}

	return booking, nil
}

// FindActiveByProductAndBuyer finds a pending or confirmed booking by the
// given buyer for the given product, used for the duplicate-booking guard.
func (r *bookingRepository) FindActiveByProductAndBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*domain.Booking, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE product_id = $1 AND buyer_id = $2 AND status IN ('pending', 'confirmed')
	`, bookingColumns)

	booking, err := scanBooking(querier(ctx, r.db).QueryRowContext(ctx, query, productID, buyerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find active booking: %w", err)
	}

	return booking, nil
}

// UpdateStatus performs a compare-and-commit transition on the status field
func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) error {
	query := `UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := querier(ctx, r.db).ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrBookingStatusConflict
	}

	return nil
}

// CancelActive cancels a booking that is still pending or confirmed. A
// booking already in a terminal state yields ErrBookingStatusConflict.
func (r *bookingRepository) CancelActive(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bookings SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
	`

	result, err := querier(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrBookingStatusConflict
	}

	return nil
}

// CancelOtherPending bulk-cancels every pending booking for the product
// except the given one. Runs in the caller's transaction so a confirm and its
// auto-cancellations commit as one unit.
func (r *bookingRepository) CancelOtherPending(ctx context.Context, productID, exceptID uuid.UUID) (int64, error) {
	query := `
		UPDATE bookings SET status = 'cancelled', updated_at = NOW()
		WHERE product_id = $1 AND id <> $2 AND status = 'pending'
	`

	result, err := querier(ctx, r.db).ExecContext(ctx, query, productID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel competing bookings: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}

// ListByBuyer retrieves a buyer's bookings, newest first
func (r *bookingRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE buyer_id = $1 ORDER BY created_at DESC`, bookingColumns)
	return r.queryBookings(ctx, query, buyerID)
}

// ListBySeller retrieves a seller's bookings, newest first
func (r *bookingRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE seller_id = $1 ORDER BY created_at DESC`, bookingColumns)
	return r.queryBookings(ctx, query, sellerID)
}

// DeleteByProduct removes all bookings referencing a product
func (r *bookingRepository) DeleteByProduct(ctx context.Context, productID uuid.UUID) error {
	_, err := querier(ctx, r.db).ExecContext(ctx, `DELETE FROM bookings WHERE product_id = $1`, productID)
	if err != nil {
		return fmt.Errorf("failed to delete bookings by product: %w", err)
	}
	return nil
}

// DeleteByUser removes all bookings where the user is buyer or seller
func (r *bookingRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := querier(ctx, r.db).ExecContext(ctx,
		`DELETE FROM bookings WHERE buyer_id = $1 OR seller_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bookings by user: %w", err)
	}
	return nil
}

func (r *bookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*domain.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}

func scanBooking(row interface{ Scan(dest ...any) error }) (*domain.Booking, error) {
	b := &domain.Booking{}
	err := row.Scan(
		&b.ID,
		&b.ProductID,
		&b.BuyerID,
		&b.SellerID,
		&b.Status,
		&b.PriceAtBooking,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}
