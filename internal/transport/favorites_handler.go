package transport

import (
	"net/http"

	"recommerce/internal/middleware"
	"recommerce/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FavoritesHandler handles HTTP requests for the user's favorites set
type FavoritesHandler struct {
	favoritesService service.FavoritesService
	logger           *zap.Logger
}

// NewFavoritesHandler creates a new FavoritesHandler
func NewFavoritesHandler(favoritesService service.FavoritesService, logger *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{favoritesService: favoritesService, logger: logger}
}

// RegisterRoutes registers all favorites routes
func (h *FavoritesHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/favorites", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.List)
		r.Put("/{productID}", h.Add)
		r.Delete("/{productID}", h.Remove)
	})
}

// Add puts a product into the authenticated user's favorites set
func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := pathID(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.favoritesService.Add(r.Context(), userID, productID); err != nil {
		respondServiceError(w, h.logger, err, "failed to add favorite")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "added to favorites"})
}

// Remove takes a product out of the authenticated user's favorites set
func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := pathID(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.favoritesService.Remove(r.Context(), userID, productID); err != nil {
		respondServiceError(w, h.logger, err, "failed to remove favorite")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "removed from favorites"})
}

// List returns the authenticated user's favorite products
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	products, err := h.favoritesService.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list favorites")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}
