package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"recommerce/internal/blob"
	"recommerce/internal/config"
	custommiddleware "recommerce/internal/middleware"
	"recommerce/internal/repository"
	"recommerce/internal/service"
	"recommerce/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, blobStore blob.Store) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env != "production"))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 300,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit",
	}, logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	txManager := repository.NewTxManager(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)

	// Initialize services
	ratings := service.NewRatingAggregator(reviewRepo, userRepo, logger)
	userService := service.NewUserService(userRepo, refreshTokenRepo, blobStore, cfg.JWT.Secret, logger)
	productService := service.NewProductService(txManager, productRepo, userRepo, blobStore, logger)
	bookingService := service.NewBookingService(txManager, bookingRepo, productRepo, userRepo, logger)
	reviewService := service.NewReviewService(reviewRepo, bookingRepo, userRepo, ratings, blobStore, logger)
	favoritesService := service.NewFavoritesService(userRepo, productRepo)
	deletionService := service.NewDeletionService(
		txManager, userRepo, productRepo, bookingRepo, reviewRepo, refreshTokenRepo,
		ratings, blobStore, logger,
	)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, deletionService, logger)
	productHandler := transport.NewProductHandler(productService, deletionService, logger)
	bookingHandler := transport.NewBookingHandler(bookingService, logger)
	reviewHandler := transport.NewReviewHandler(reviewService, logger)
	favoritesHandler := transport.NewFavoritesHandler(favoritesService, logger)
	adminHandler := transport.NewAdminHandler(userService, productService, deletionService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware)
	bookingHandler.RegisterRoutes(router, authMiddleware)
	reviewHandler.RegisterRoutes(router, authMiddleware)
	favoritesHandler.RegisterRoutes(router, authMiddleware)
	adminHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
