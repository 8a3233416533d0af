package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"recommerce/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound      = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrUserAlreadyExists = fmt.Errorf("user with this email or phone already exists: %w", domain.ErrConflict)
)

// UserRepository defines the interface for user data access, including the
// user's derived collections (favorites and purchased/sold trades). The
// derived fields is_seller and rating are written only through SetSellerFlag
// and SetRating, never as part of a profile update.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	SetSellerFlag(ctx context.Context, id uuid.UUID, isSeller bool) error
	SetRating(ctx context.Context, id uuid.UUID, rating float64) error
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	Delete(ctx context.Context, id uuid.UUID) error

	AddFavorite(ctx context.Context, userID, productID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID, productID uuid.UUID) error
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	RemoveFavoriteEverywhere(ctx context.Context, productIDs []uuid.UUID) error
	RemoveFavoritesOfUser(ctx context.Context, userID uuid.UUID) error

	AddTrade(ctx context.Context, userID, productID uuid.UUID, side domain.TradeSide) error
	ListTrades(ctx context.Context, userID uuid.UUID, side domain.TradeSide) ([]uuid.UUID, error)
	DeleteTradesForProducts(ctx context.Context, productIDs []uuid.UUID) error
	DeleteTradesForUser(ctx context.Context, userID uuid.UUID) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, phone_number, password_hash, avatar_blob_id, avatar_url,
	rating, is_seller, is_blocked, role, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.Avatar.BlobID,
		&u.Avatar.URL,
		&u.Rating,
		&u.IsSeller,
		&u.IsBlocked,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user into the database using parameterized queries
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, phone_number, password_hash, avatar_blob_id, avatar_url,
			rating, is_seller, is_blocked, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := querier(ctx, r.db).ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.Avatar.BlobID,
		user.Avatar.URL,
		user.Rating,
		user.IsSeller,
		user.IsBlocked,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// FindByEmail retrieves a user by email
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	user, err := scanUser(querier(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// FindByID retrieves a user by ID
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(querier(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// List retrieves all users, newest first
func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY created_at DESC`, userColumns)

	rows, err := querier(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateProfile updates the user's own profile fields. Derived fields
// (rating, is_seller) are deliberately excluded.
func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET name = $2, email = $3, phone_number = $4, password_hash = $5,
		    avatar_blob_id = $6, avatar_url = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := querier(ctx, r.db).ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.Avatar.BlobID,
		user.Avatar.URL,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetSellerFlag maintains the derived is_seller flag
func (r *userRepository) SetSellerFlag(ctx context.Context, id uuid.UUID, isSeller bool) error {
	return r.setFlag(ctx, id, "is_seller", isSeller)
}

// SetBlocked toggles the admin block on an account
func (r *userRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	return r.setFlag(ctx, id, "is_blocked", blocked)
}

func (r *userRepository) setFlag(ctx context.Context, id uuid.UUID, column string, value bool) error {
	query := fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = NOW() WHERE id = $1`, column)

	result, err := querier(ctx, r.db).ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRating writes the recomputed mean rating for a seller
func (r *userRepository) SetRating(ctx context.Context, id uuid.UUID, rating float64) error {
	query := `UPDATE users SET rating = $2, updated_at = NOW() WHERE id = $1`

	result, err := querier(ctx, r.db).ExecContext(ctx, query, id, rating)
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user row. Dependent rows must already be gone; the
// cascading deletion service owns that ordering.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := querier(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddFavorite adds a product to the user's favorites set. Duplicate adds are
// no-ops, not errors.
func (r *userRepository) AddFavorite(ctx context.Context, userID, productID uuid.UUID) error {
	query := `
		INSERT INTO favorites (user_id, product_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, product_id) DO NOTHING
	`

	if _, err := querier(ctx, r.db).ExecContext(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite removes a product from the user's favorites set. Removing a
// non-member is not an error.
func (r *userRepository) RemoveFavorite(ctx context.Context, userID, productID uuid.UUID) error {
	query := `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`

	if _, err := querier(ctx, r.db).ExecContext(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the product ids in the user's favorites set
func (r *userRepository) ListFavorites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT product_id FROM favorites WHERE user_id = $1 ORDER BY created_at DESC`

	return r.listIDs(ctx, query, userID)
}

// RemoveFavoriteEverywhere scrubs the given products from every user's
// favorites set, so favorites never reference a dead product.
func (r *userRepository) RemoveFavoriteEverywhere(ctx context.Context, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}

	query := `DELETE FROM favorites WHERE product_id = ANY($1)`

	if _, err := querier(ctx, r.db).ExecContext(ctx, query, uuidArray(productIDs)); err != nil {
		return fmt.Errorf("failed to scrub favorites: %w", err)
	}
	return nil
}

// RemoveFavoritesOfUser drops the user's own favorites set
func (r *userRepository) RemoveFavoritesOfUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM favorites WHERE user_id = $1`

	if _, err := querier(ctx, r.db).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to remove user favorites: %w", err)
	}
	return nil
}

// AddTrade records a product in the user's purchased or sold collection
func (r *userRepository) AddTrade(ctx context.Context, userID, productID uuid.UUID, side domain.TradeSide) error {
	query := `
		INSERT INTO trades (user_id, product_id, side, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id, side) DO NOTHING
	`

	if _, err := querier(ctx, r.db).ExecContext(ctx, query, userID, productID, string(side)); err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}
	return nil
}

// ListTrades returns the product ids on one side of the user's trade history
func (r *userRepository) ListTrades(ctx context.Context, userID uuid.UUID, side domain.TradeSide) ([]uuid.UUID, error) {
	query := `SELECT product_id FROM trades WHERE user_id = $1 AND side = $2 ORDER BY created_at DESC`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, userID, string(side))
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// DeleteTradesForProducts removes trade records referencing deleted products
func (r *userRepository) DeleteTradesForProducts(ctx context.Context, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}

	query := `DELETE FROM trades WHERE product_id = ANY($1)`

	if _, err := querier(ctx, r.db).ExecContext(ctx, query, uuidArray(productIDs)); err != nil {
		return fmt.Errorf("failed to delete trades: %w", err)
	}
	return nil
}

// DeleteTradesForUser drops the user's entire trade history
func (r *userRepository) DeleteTradesForUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM trades WHERE user_id = $1`

	if _, err := querier(ctx, r.db).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete user trades: %w", err)
	}
	return nil
}

func (r *userRepository) listIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}

// uuidArray renders ids as a Postgres array literal accepted by ANY($1)
func uuidArray(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// isUniqueViolation detects a unique constraint violation (SQLSTATE 23505)
// without depending on a specific constraint name.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLSTATE 23505")
}
