package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProductStatus is the single source of truth for bookability.
type ProductStatus string

const (
	ProductAvailable ProductStatus = "available"
	ProductBooked    ProductStatus = "booked"
	ProductSold      ProductStatus = "sold"
)

// Product conditions
const (
	ConditionNew         = "new"
	ConditionUsed        = "used"
	ConditionRefurbished = "refurbished"
)

// Product represents a listing. SellerID is immutable after creation; Status
// transitions are owned by the booking state machine.
type Product struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	SellerID    uuid.UUID     `json:"seller_id" db:"seller_id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Price       float64       `json:"price" db:"price"`
	Category    string        `json:"category" db:"category"`
	Condition   string        `json:"condition" db:"condition"`
	Status      ProductStatus `json:"status" db:"status"`
	Images      []Image       `json:"images"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}
