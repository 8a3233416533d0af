package transport

import (
	"context"
	"net/http"

	"recommerce/internal/domain"
	"recommerce/internal/middleware"
	"recommerce/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateBookingRequest represents the booking creation payload
type CreateBookingRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// BookingHandler handles HTTP requests for the booking lifecycle
type BookingHandler struct {
	bookingService service.BookingService
	logger         *zap.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService service.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, logger: logger}
}

// RegisterRoutes registers all booking routes. Every booking operation
// requires authentication.
func (h *BookingHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.Create)
		r.Get("/purchases", h.ListPurchases)
		r.Get("/sales", h.ListSales)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/confirm", h.Confirm)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/complete", h.Complete)
	})
}

// Create books a product for the authenticated user
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateBookingRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	booking, err := h.bookingService.Create(r.Context(), productID, buyerID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create booking")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, booking)
}

// Confirm moves a pending booking to confirmed (seller only)
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.Confirm, "failed to confirm booking")
}

// Cancel cancels an active booking (buyer or seller)
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.Cancel, "failed to cancel booking")
}

// Complete finalizes a confirmed booking (seller only)
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.Complete, "failed to complete booking")
}

// Get returns a booking to one of its parties
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.Get, "failed to get booking")
}

// ListPurchases returns the bookings the user placed as buyer
func (h *BookingHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.bookingService.ListForBuyer, "failed to list purchases")
}

// ListSales returns the bookings on the user's listings
func (h *BookingHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.bookingService.ListForSeller, "failed to list sales")
}

type transitionFunc func(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error)

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc, fallback string) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bookingID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid booking ID")
		return
	}

	booking, err := fn(r.Context(), bookingID, userID)
	if err != nil {
		respondServiceError(w, h.logger, err, fallback)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) ([]*domain.Booking, error), fallback string) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bookings, err := fn(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err, fallback)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, bookings)
}
