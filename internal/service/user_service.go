package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recommerce/internal/blob"
	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Token expiration times
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", domain.ErrInvalid)
	ErrInvalidToken       = fmt.Errorf("invalid token: %w", domain.ErrForbidden)
	ErrTokenExpired       = fmt.Errorf("token has expired: %w", domain.ErrForbidden)
	ErrAccountBlocked     = fmt.Errorf("account is blocked: %w", domain.ErrForbidden)
	ErrCannotBlockAdmin   = fmt.Errorf("administrator accounts cannot be blocked: %w", domain.ErrForbidden)
)

// UpdateProfileInput carries a partial profile edit. Nil means unchanged.
// Rating, seller flag and block flag are derived fields and not editable here.
type UpdateProfileInput struct {
	Name        *string
	Email       *string
	PhoneNumber *string
	Password    *string
	Avatar      *ImageUpload
}

// UserService defines the interface for account and auth business logic
type UserService interface {
	Register(ctx context.Context, name, email, phoneNumber, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*domain.User, error)
	ListTrades(ctx context.Context, userID uuid.UUID, side domain.TradeSide) ([]uuid.UUID, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	SetBlocked(ctx context.Context, userID uuid.UUID, blocked bool) error
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	blobs            blob.Store
	jwtSecret        string
	logger           *zap.Logger
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	blobs blob.Store,
	jwtSecret string,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		blobs:            blobs,
		jwtSecret:        jwtSecret,
		logger:           logger,
	}
}

// Register creates a new user account with hashed password
func (s *userService) Register(ctx context.Context, name, email, phoneNumber, password string) (*domain.User, error) {
	// Check if user already exists
	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PhoneNumber:  phoneNumber,
		PasswordHash: hashedPassword,
		Rating:       domain.NoRating,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns JWT tokens. Blocked accounts cannot
// log in even with valid credentials.
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	if user.IsBlocked {
		return "", "", nil, ErrAccountBlocked
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Logout invalidates the refresh token
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Token doesn't exist, consider it already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if user.IsBlocked {
		return "", ErrAccountBlocked
	}

	newAccessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial edit to the user's own profile. A new
// avatar replaces the old one: the fresh blob is uploaded first, the row is
// updated, and only then is the previous avatar deleted best-effort.
func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = *in.PhoneNumber
	}
	if in.Password != nil {
		hashed, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hashed
	}

	oldAvatar := user.Avatar
	if in.Avatar != nil {
		obj, err := s.blobs.Upload(ctx, in.Avatar.Reader, "recommerce/avatars", in.Avatar.Filename, in.Avatar.ContentType)
		if err != nil {
			return nil, fmt.Errorf("avatar upload failed: %w", err)
		}
		user.Avatar = domain.Image{BlobID: obj.ID, URL: obj.URL}
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if in.Avatar != nil {
			if delErr := s.blobs.Delete(ctx, user.Avatar.BlobID); delErr != nil {
				s.logger.Warn("Failed to delete orphaned avatar",
					zap.String("blob_id", user.Avatar.BlobID),
					zap.Error(delErr),
				)
			}
		}
		return nil, err
	}

	if in.Avatar != nil && !oldAvatar.Empty() {
		if err := s.blobs.Delete(ctx, oldAvatar.BlobID); err != nil {
			s.logger.Warn("Failed to delete replaced avatar",
				zap.String("blob_id", oldAvatar.BlobID),
				zap.Error(err),
			)
		}
	}

	return user, nil
}

// ListTrades returns the product ids in the user's purchased or sold
// collection, newest first.
func (s *userService) ListTrades(ctx context.Context, userID uuid.UUID, side domain.TradeSide) ([]uuid.UUID, error) {
	return s.userRepo.ListTrades(ctx, userID, side)
}

// ListUsers returns all accounts, newest first
func (s *userService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}

// SetBlocked toggles the admin block on an account. Administrator accounts
// cannot be blocked.
func (s *userService) SetBlocked(ctx context.Context, userID uuid.UUID, blocked bool) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if blocked && user.Role == domain.RoleAdmin {
		return ErrCannotBlockAdmin
	}

	if err := s.userRepo.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}

	s.logger.Info("User block flag changed",
		zap.String("user_id", userID.String()),
		zap.Bool("blocked", blocked),
	)

	return nil
}

// hashPassword hashes a password using bcrypt
func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token with user ID and role claims
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	expirationTime := time.Now().Add(AccessTokenExpiration)
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	tokenString := uuid.New().String()

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: time.Now().Add(RefreshTokenExpiration),
		CreatedAt: time.Now(),
		Revoked:   false,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}
