package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus values. Completed and cancelled are terminal.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Active reports whether the booking still holds the product, i.e. it has not
// reached a terminal state.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Booking references a product, its buyer and its seller. SellerID is a
// deliberate denormalized copy of the product's seller at creation time, so
// historical bookings stay interpretable on their own. PriceAtBooking
// snapshots the product price at creation and is never updated.
type Booking struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	ProductID      uuid.UUID     `json:"product_id" db:"product_id"`
	BuyerID        uuid.UUID     `json:"buyer_id" db:"buyer_id"`
	SellerID       uuid.UUID     `json:"seller_id" db:"seller_id"`
	Status         BookingStatus `json:"status" db:"status"`
	PriceAtBooking float64       `json:"price_at_booking" db:"price_at_booking"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// TradeSide distinguishes the purchased and sold collections on a user.
type TradeSide string

const (
	TradePurchased TradeSide = "purchased"
	TradeSold      TradeSide = "sold"
)
