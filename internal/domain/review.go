package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)

// Review is written by the buyer of a booking about its seller. At most one
// review may exist per (reviewer, booking) pair.
type Review struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ReviewerID uuid.UUID `json:"reviewer_id" db:"reviewer_id"`
	SellerID   uuid.UUID `json:"seller_id" db:"seller_id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	Image      Image     `json:"image"`
	Message    string    `json:"message" db:"message"`
	Rating     int       `json:"rating" db:"rating"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
