package repository

import (
	"context"
	"database/sql"
	"fmt"

	"recommerce/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", domain.ErrNotFound)

	// ErrProductStatusConflict is returned when a compare-and-commit status
	// update matched no row: either a concurrent writer changed the status
	// first, or the product is gone.
	ErrProductStatusConflict = fmt.Errorf("product status %w", domain.ErrConflict)
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductFilter narrows and pages a product listing
type ProductFilter struct {
	Category  string
	SellerID  *uuid.UUID
	Status    domain.ProductStatus
	MinPrice  *float64
	MaxPrice  *float64
	Page      int
	PageSize  int
	SortBy    string
	SortOrder SortOrder
}

// ProductRepository defines the interface for product data access. Status is
// mutated only through the compare-and-commit UpdateStatus; a blind SetStatus
// is not offered.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBySeller(ctx context.Context, sellerID uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error)
	CountBySeller(ctx context.Context, sellerID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.ProductStatus) error
	ImagesBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Image, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product and its ordered image references
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	q := querier(ctx, r.db)

	query := `
		INSERT INTO products (id, seller_id, title, description, price, category, condition, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := q.ExecContext(
		ctx,
		query,
		product.ID,
		product.SellerID,
		product.Title,
		product.Description,
		product.Price,
		product.Category,
		product.Condition,
		string(product.Status),
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	for i, img := range product.Images {
		_, err := q.ExecContext(ctx, `
			INSERT INTO product_images (product_id, position, blob_id, url)
			VALUES ($1, $2, $3, $4)
		`, product.ID, i, img.BlobID, img.URL)
		if err != nil {
			return fmt.Errorf("failed to store product image: %w", err)
		}
	}

	return nil
}

// Update updates mutable listing fields. Seller and status are deliberately
// excluded: the seller is immutable and status changes go through UpdateStatus.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET title = $2, description = $3, price = $4, category = $5, condition = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := querier(ctx, r.db).ExecContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		product.Price,
		product.Category,
		product.Condition,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// UpdateStatus performs a compare-and-commit transition on the status field.
// The WHERE clause re-checks the expected prior status so two concurrent
// writers cannot both succeed; the loser gets ErrProductStatusConflict.
func (r *productRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.ProductStatus) error {
	query := `UPDATE products SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := querier(ctx, r.db).ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update product status: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrProductStatusConflict
	}

	return nil
}

// Delete removes a product; product_images rows go with it via FK cascade
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := querier(ctx, r.db).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// DeleteBySeller removes all of a seller's products
func (r *productRepository) DeleteBySeller(ctx context.Context, sellerID uuid.UUID) error {
	_, err := querier(ctx, r.db).ExecContext(ctx, `DELETE FROM products WHERE seller_id = $1`, sellerID)
	if err != nil {
		return fmt.Errorf("failed to delete seller products: %w", err)
	}
	return nil
}

// FindByID retrieves a product with its images
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, seller_id, title, description, price, category, condition, status, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	product, err := scanProduct(querier(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if err := r.loadImages(ctx, []*domain.Product{product}); err != nil {
		return nil, err
	}

	return product, nil
}

// List retrieves products with filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"title":      true,
		"price":      true,
		"created_at": true,
	}
	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	where := ""
	args := []any{}
	and := func(cond string, arg any) {
		args = append(args, arg)
		if where == "" {
			where = fmt.Sprintf("WHERE %s $%d", cond, len(args))
		} else {
			where += fmt.Sprintf(" AND %s $%d", cond, len(args))
		}
	}

	if filter.Category != "" {
		and("category =", filter.Category)
	}
	if filter.SellerID != nil {
		and("seller_id =", *filter.SellerID)
	}
	if filter.Status != "" {
		and("status =", string(filter.Status))
	}
	if filter.MinPrice != nil {
		and("price >=", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		and("price <=", *filter.MaxPrice)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", where)
	var total int
	if err := querier(ctx, r.db).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT id, seller_id, title, description, price, category, condition, status, created_at, updated_at
		FROM products
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, where, sortBy, sortOrder, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	if err := r.loadImages(ctx, products); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ListBySeller retrieves all products listed by a seller, with images
func (r *productRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error) {
	query := `
		SELECT id, seller_id, title, description, price, category, condition, status, created_at, updated_at
		FROM products
		WHERE seller_id = $1
		ORDER BY created_at DESC
	`

	products, err := r.queryProducts(ctx, query, sellerID)
	if err != nil {
		return nil, err
	}

	if err := r.loadImages(ctx, products); err != nil {
		return nil, err
	}

	return products, nil
}

// CountBySeller counts a seller's remaining listings
func (r *productRepository) CountBySeller(ctx context.Context, sellerID uuid.UUID) (int, error) {
	var count int
	err := querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE seller_id = $1`, sellerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count seller products: %w", err)
	}
	return count, nil
}

// ImagesBySeller returns the blob references of all images across a seller's
// products, for snapshotting before a cascading delete.
func (r *productRepository) ImagesBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Image, error) {
	query := `
		SELECT pi.blob_id, pi.url
		FROM product_images pi
		JOIN products p ON p.id = pi.product_id
		WHERE p.seller_id = $1
	`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller images: %w", err)
	}
	defer rows.Close()

	images := []domain.Image{}
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.BlobID, &img.URL); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func (r *productRepository) loadImages(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(products))
	byID := make(map[uuid.UUID]*domain.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	query := `
		SELECT product_id, blob_id, url
		FROM product_images
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, uuidArray(ids))
	if err != nil {
		return fmt.Errorf("failed to load product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID uuid.UUID
		var img domain.Image
		if err := rows.Scan(&productID, &img.BlobID, &img.URL); err != nil {
			return fmt.Errorf("failed to scan product image: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Images = append(p.Images, img)
		}
	}

	return rows.Err()
}

func scanProduct(row interface{ Scan(dest ...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.Condition,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
