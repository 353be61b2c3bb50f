package transport

import (
	"errors"
	"net/http"
	"strconv"

	"mysterybox/internal/domain"
	"mysterybox/internal/middleware"
	"mysterybox/internal/repository"
	"mysterybox/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusRequest represents the bundle status transition payload
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft published sold"`
}

// BundleHandler handles HTTP requests for materialized bundles
type BundleHandler struct {
	bundleService *service.BundleService
	logger        *zap.Logger
}

// NewBundleHandler creates a new BundleHandler
func NewBundleHandler(bundleService *service.BundleService, logger *zap.Logger) *BundleHandler {
	return &BundleHandler{bundleService: bundleService, logger: logger}
}

// RegisterRoutes registers all bundle routes
func (h *BundleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/bundles", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.UpdateStatus)
	})
}

// List returns the tenant's recent bundles
func (h *BundleHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "tenant not resolved")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	bundles, err := h.bundleService.ListBundles(r.Context(), tenant.ID, limit)
	if err != nil {
		h.logger.Error("Failed to list bundles", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list bundles")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, bundles)
}

// Get returns one bundle instance
func (h *BundleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid bundle id")
		return
	}

	instance, err := h.bundleService.GetBundle(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBundleNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "bundle not found")
			return
		}
		h.logger.Error("Failed to get bundle", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get bundle")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, instance)
}

// UpdateStatus advances a bundle's lifecycle status
func (h *BundleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid bundle id")
		return
	}

	var req StatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	instance, err := h.bundleService.UpdateStatus(r.Context(), id, domain.BundleStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBundleNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "bundle not found")
		case errors.Is(err, service.ErrInvalidTransition):
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("Failed to update bundle status", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update bundle status")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, instance)
}
