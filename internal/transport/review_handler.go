package transport

import (
	"net/http"
	"strconv"

	"recommerce/internal/middleware"
	"recommerce/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReviewHandler handles HTTP requests for reviews
type ReviewHandler struct {
	reviewService service.ReviewService
	logger        *zap.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, logger: logger}
}

// RegisterRoutes registers all review routes
func (h *ReviewHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/reviews", func(r chi.Router) {
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/mine", h.ListMine)
			r.Delete("/{id}", h.Delete)
		})
	})

	r.With(authMiddleware).Post("/api/bookings/{id}/reviews", h.Post)
}

// Post creates a review for a booking. Expects a multipart form with
// "message" and "rating" fields plus an optional "image" file.
func (h *ReviewHandler) Post(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bookingID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid booking ID")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	rating, err := strconv.Atoi(r.FormValue("rating"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid rating")
		return
	}

	in := service.ReviewInput{
		Message: r.FormValue("message"),
		Rating:  rating,
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["image"]) > 0 {
		upload, closeFile, err := fileUpload(r.MultipartForm.File["image"][0])
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "could not read image file")
			return
		}
		defer closeFile()
		in.Image = &upload
	}

	review, err := h.reviewService.Post(r.Context(), reviewerID, bookingID, in)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to post review")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, review)
}

// Delete removes a review written by the authenticated user
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reviewID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid review ID")
		return
	}

	if err := h.reviewService.Delete(r.Context(), userID, reviewID); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete review")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "review deleted"})
}

// Get returns a single review
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	reviewID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid review ID")
		return
	}

	review, err := h.reviewService.Get(r.Context(), reviewID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get review")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, review)
}

// ListMine returns the reviews the authenticated user has written
func (h *ReviewHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reviews, err := h.reviewService.ListByReviewer(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list reviews")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}
