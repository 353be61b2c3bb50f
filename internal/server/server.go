package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"mysterybox/internal/config"
	custommiddleware "mysterybox/internal/middleware"
	"mysterybox/internal/oauth"
	"mysterybox/internal/repository"
	"mysterybox/internal/selection"
	"mysterybox/internal/service"
	"mysterybox/internal/shopify"
	"mysterybox/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
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

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env != "production"))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	catalogRepo := repository.NewCatalogItemRepository(db)
	templateRepo := repository.NewBundleTemplateRepository(db)
	bundleRepo := repository.NewBundleInstanceRepository(db)

	// Initialize the catalog API client and services
	apiClient := shopify.NewClient(cfg.Shopify.APIVersion, cfg.Shopify.PageSize, logger)
	syncService := service.NewSyncService(apiClient, catalogRepo, cfg.Shopify.MaxSyncPages, logger)
	templateService := service.NewTemplateService(templateRepo, logger)
	bundleService := service.NewBundleService(templateRepo, catalogRepo, bundleRepo, selection.New(nil), logger)

	stateStore := oauth.NewStateStore(redisClient, time.Duration(cfg.Shopify.StateTTL)*time.Minute)

	// Initialize handlers
	syncHandler := transport.NewSyncHandler(syncService, logger)
	templateHandler := transport.NewTemplateHandler(templateService, bundleService, logger)
	bundleHandler := transport.NewBundleHandler(bundleService, logger)
	webhookHandler := transport.NewWebhookHandler(syncService, tenantRepo, logger)
	authHandler := transport.NewAuthHandler(stateStore, tenantRepo, logger)

	// API routes resolve the tenant and are rate limited per tenant
	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.TenantMiddleware(tenantRepo, logger))
		r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
			Window:            time.Minute,
			KeyPrefix:         "ratelimit:api",
		}, logger))

		syncHandler.RegisterRoutes(r)
		templateHandler.RegisterRoutes(r)
		bundleHandler.RegisterRoutes(r)
	})

	// Webhooks authenticate by signature, install flow by state nonce
	webhookHandler.RegisterRoutes(router,
		custommiddleware.WebhookVerificationMiddleware(cfg.Shopify.WebhookSecret, logger))
	authHandler.RegisterRoutes(router)

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

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
