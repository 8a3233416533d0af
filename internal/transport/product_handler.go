package transport

import (
	"net/http"
	"strconv"

	"recommerce/internal/domain"
	"recommerce/internal/middleware"
	"recommerce/internal/repository"
	"recommerce/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpdateProductRequest represents a partial listing edit
type UpdateProductRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Category    *string  `json:"category,omitempty"`
	Condition   *string  `json:"condition,omitempty"`
}

// ProductListResponse wraps a page of listings with the total match count
type ProductListResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ProductHandler handles HTTP requests for listings
type ProductHandler struct {
	productService  service.ProductService
	deletionService service.DeletionService
	logger          *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, deletionService service.DeletionService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService:  productService,
		deletionService: deletionService,
		logger:          logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		// Public routes
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/seller/{sellerID}", h.ListBySeller)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Get("/mine", h.ListMine)
		})
	})
}

// Create handles listing creation. Expects a multipart form with the text
// fields plus zero or more "images" file fields.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
		return
	}

	in := service.CreateProductInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		Category:    r.FormValue("category"),
		Condition:   r.FormValue("condition"),
	}
	if in.Title == "" || in.Category == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "title and category are required")
		return
	}

	var closers []func()
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images"] {
			upload, closeFile, err := fileUpload(header)
			if err != nil {
				middleware.RespondWithError(w, http.StatusBadRequest, "could not read image file")
				return
			}
			closers = append(closers, closeFile)
			in.Images = append(in.Images, upload)
		}
	}

	product, err := h.productService.Create(r.Context(), sellerID, in)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles a partial listing edit by its seller
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	product, err := h.productService.Update(r.Context(), productID, userID, service.UpdateProductInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Condition:   req.Condition,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a listing on behalf of its seller
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.deletionService.DeleteProduct(r.Context(), productID, userID); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// Get returns a single listing
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.productService.Get(r.Context(), productID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// List returns a filtered, sorted page of listings
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
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

// ListBySeller returns all listings of one seller
func (h *ProductHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	sellerID, err := pathID(chi.URLParam(r, "sellerID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid seller ID")
		return
	}

	products, err := h.productService.ListBySeller(r.Context(), sellerID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// ListMine returns the authenticated user's own listings
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	products, err := h.productService.ListBySeller(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func parseProductFilter(r *http.Request) repository.ProductFilter {
	q := r.URL.Query()

	filter := repository.ProductFilter{
		Category: q.Get("category"),
		Status:   domain.ProductStatus(q.Get("status")),
		SortBy:   q.Get("sort_by"),
	}

	if q.Get("order") == "asc" {
		filter.SortOrder = repository.SortOrderAsc
	} else {
		filter.SortOrder = repository.SortOrderDesc
	}

	if raw := q.Get("seller_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.SellerID = &id
		}
	}
	if raw := q.Get("min_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinPrice = &v
		}
	}
	if raw := q.Get("max_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MaxPrice = &v
		}
	}

	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	return filter
}
