package transport

import (
	"encoding/json"
	"net/http"

	"mysterybox/internal/domain"
	"mysterybox/internal/middleware"
	"mysterybox/internal/repository"
	"mysterybox/internal/service"
	"mysterybox/internal/shopify"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// WebhookHandler receives single-item catalog events from the upstream
// platform. Updates and deletes go through the same paths as bulk sync, so
// the cache stays consistent whichever way a change arrives.
type WebhookHandler struct {
	syncService *service.SyncService
	tenants     repository.TenantRepository
	logger      *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(syncService *service.SyncService, tenants repository.TenantRepository, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		syncService: syncService,
		tenants:     tenants,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes behind the signature check
func (h *WebhookHandler) RegisterRoutes(r chi.Router, verify func(http.Handler) http.Handler) {
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(verify)
		r.Post("/products/update", h.ProductUpdate)
		r.Post("/products/delete", h.ProductDelete)
	})
}

// ProductUpdate handles product created/updated events
func (h *WebhookHandler) ProductUpdate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}

	var product shopify.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.logger.Debug("Webhook decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if err := h.syncService.ApplyProductUpdate(r.Context(), tenant.ID, &product); err != nil {
		h.logger.Error("Webhook product update failed",
			zap.Int64("external_id", product.ID),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusUnprocessableEntity, "failed to apply product update")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ProductDelete handles product deleted events
func (h *WebhookHandler) ProductDelete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}

	var payload struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ID == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if err := h.syncService.ApplyProductDelete(r.Context(), tenant.ID, payload.ID); err != nil {
		h.logger.Error("Webhook product delete failed",
			zap.Int64("external_id", payload.ID),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to apply product delete")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// resolveTenant maps the webhook's shop domain header to a tenant. Webhooks
// bypass the API tenant middleware because they authenticate by signature.
func (h *WebhookHandler) resolveTenant(w http.ResponseWriter, r *http.Request) (*domain.Tenant, bool) {
	shopDomain := r.Header.Get("X-Shopify-Shop-Domain")
	if shopDomain == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing shop domain header")
		return nil, false
	}

	tenant, err := h.tenants.FindByShopDomain(r.Context(), shopDomain)
	if err != nil {
		if err == repository.ErrTenantNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "unknown shop domain")
			return nil, false
		}
		h.logger.Error("Failed to resolve webhook tenant", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	return tenant, true
}
