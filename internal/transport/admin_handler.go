package transport

import (
	"net/http"

	"recommerce/internal/middleware"
	"recommerce/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler handles HTTP requests restricted to administrators
type AdminHandler struct {
	userService     service.UserService
	productService  service.ProductService
	deletionService service.DeletionService
	logger          *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	userService service.UserService,
	productService service.ProductService,
	deletionService service.DeletionService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		userService:     userService,
		productService:  productService,
		deletionService: deletionService,
		logger:          logger,
	}
}

// RegisterRoutes registers all admin routes behind auth plus the admin role
// check.
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))

		r.Get("/users", h.ListUsers)
		r.Get("/products", h.ListProducts)
		r.Post("/users/{id}/block", h.BlockUser)
		r.Post("/users/{id}/unblock", h.UnblockUser)
		r.Delete("/users/{id}", h.DeleteUser)
		r.Delete("/products/{id}", h.DeleteProduct)
	})
}

// ListUsers returns every account
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list users")
		return
	}

	profiles := make([]UserProfile, len(users))
	for i, u := range users {
		profiles[i] = toProfile(u)
	}

	middleware.RespondWithJSON(w, http.StatusOK, profiles)
}

// ListProducts returns a filtered page of all listings, any status included
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := parseProductFilter(r)

	products, total, err := h.productService.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// BlockUser blocks an account from logging in
func (h *AdminHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// UnblockUser lifts the block on an account
func (h *AdminHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *AdminHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	userID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.userService.SetBlocked(r.Context(), userID, blocked); err != nil {
		respondServiceError(w, h.logger, err, "failed to change block flag")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"blocked": blocked})
}

// DeleteUser removes any account and everything referencing it
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.deletionService.DeleteAccount(r.Context(), userID); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete user")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// DeleteProduct removes any listing regardless of its state
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.deletionService.DeleteProductByAdmin(r.Context(), productID); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
