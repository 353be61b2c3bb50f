package transport

import (
	"errors"
	"net/http"

	"mysterybox/internal/middleware"
	"mysterybox/internal/service"
	"mysterybox/internal/shopify"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SyncHandler triggers catalog synchronization for the resolved tenant
type SyncHandler struct {
	syncService *service.SyncService
	logger      *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{syncService: syncService, logger: logger}
}

// RegisterRoutes registers the sync route
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/sync", h.Sync)
}

// Sync runs a full catalog sync and returns the report, including partial
// success counts when some items failed.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "tenant not resolved")
		return
	}

	report, err := h.syncService.Sync(r.Context(), tenant)
	if err != nil {
		var fetchErr *shopify.FetchError
		if errors.As(err, &fetchErr) {
			h.logger.Error("Catalog sync failed", zap.String("shop_domain", tenant.ShopDomain), zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadGateway, "failed to reach the catalog API")
			return
		}
		h.logger.Error("Catalog sync failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "catalog sync failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, report)
}
