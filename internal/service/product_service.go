package service

import (
	"context"
	"fmt"
	"time"

	"recommerce/internal/blob"
	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidPrice     = fmt.Errorf("price must be greater than zero: %w", domain.ErrInvalid)
	ErrInvalidCondition = fmt.Errorf("unknown product condition: %w", domain.ErrInvalid)
)

// CreateProductInput carries the fields of a new listing
type CreateProductInput struct {
	Title       string
	Description string
	Price       float64
	Category    string
	Condition   string
	Images      []ImageUpload
}

// UpdateProductInput carries a partial update of the mutable listing fields.
// Nil means "leave unchanged". Status and seller are not updatable here.
type UpdateProductInput struct {
	Title       *string
	Description *string
	Price       *float64
	Category    *string
	Condition   *string
}

// ProductService manages listings. Product status never changes through this
// service; it belongs to the booking state machine and the deletion cascade.
type ProductService interface {
	Create(ctx context.Context, sellerID uuid.UUID, in CreateProductInput) (*domain.Product, error)
	Update(ctx context.Context, productID, actorID uuid.UUID, in UpdateProductInput) (*domain.Product, error)
	Get(ctx context.Context, productID uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error)
}

type productService struct {
	tx       repository.TxManager
	products repository.ProductRepository
	users    repository.UserRepository
	blobs    blob.Store
	logger   *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	tx repository.TxManager,
	products repository.ProductRepository,
	users repository.UserRepository,
	blobs blob.Store,
	logger *zap.Logger,
) ProductService {
	return &productService{tx: tx, products: products, users: users, blobs: blobs, logger: logger}
}

func validCondition(c string) bool {
	switch c {
	case domain.ConditionNew, domain.ConditionUsed, domain.ConditionRefurbished:
		return true
	}
	return false
}

// Create uploads the listing images and inserts the product as available.
// The insert and the seller flag update commit in one transaction, so the
// user's is_seller flag cannot disagree with their listings. If the
// transaction fails after uploads succeeded, the fresh blobs are deleted
// best-effort so nothing unreferenced lingers in the bucket.
func (s *productService) Create(ctx context.Context, sellerID uuid.UUID, in CreateProductInput) (*domain.Product, error) {
	if in.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	if !validCondition(in.Condition) {
		return nil, ErrInvalidCondition
	}

	if _, err := s.users.FindByID(ctx, sellerID); err != nil {
		return nil, err
	}

	images := make([]domain.Image, 0, len(in.Images))
	for _, up := range in.Images {
		obj, err := s.blobs.Upload(ctx, up.Reader, "recommerce/products", up.Filename, up.ContentType)
		if err != nil {
			s.cleanupBlobs(ctx, images)
			return nil, fmt.Errorf("image upload failed: %w", err)
		}
		images = append(images, domain.Image{BlobID: obj.ID, URL: obj.URL})
	}

	now := time.Now()
	product := &domain.Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Condition:   in.Condition,
		Status:      domain.ProductAvailable,
		Images:      images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, product); err != nil {
			return err
		}
		return s.users.SetSellerFlag(ctx, sellerID, true)
	})
	if err != nil {
		s.cleanupBlobs(ctx, images)
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", sellerID.String()),
	)

	return product, nil
}

// Update applies a partial edit to a listing. Only the seller may edit, and
// only the mutable fields; status stays whatever the state machine last set.
func (s *productService) Update(ctx context.Context, productID, actorID uuid.UUID, in UpdateProductInput) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.SellerID != actorID {
		return nil, ErrNotProductOwner
	}

	if in.Title != nil {
		product.Title = *in.Title
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, ErrInvalidPrice
		}
		product.Price = *in.Price
	}
	if in.Category != nil {
		product.Category = *in.Category
	}
	if in.Condition != nil {
		if !validCondition(*in.Condition) {
			return nil, ErrInvalidCondition
		}
		product.Condition = *in.Condition
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	product.UpdatedAt = time.Now()

	return product, nil
}

// Get returns a single listing with its images
func (s *productService) Get(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, productID)
}

// List returns a filtered, sorted page of listings and the total match count
func (s *productService) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	return s.products.List(ctx, filter)
}

// ListBySeller returns all of a seller's listings
func (s *productService) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error) {
	return s.products.ListBySeller(ctx, sellerID)
}

func (s *productService) cleanupBlobs(ctx context.Context, images []domain.Image) {
	for _, img := range images {
		if err := s.blobs.Delete(ctx, img.BlobID); err != nil {
			s.logger.Warn("Failed to delete orphaned product image",
				zap.String("blob_id", img.BlobID),
				zap.Error(err),
			)
		}
	}
}
