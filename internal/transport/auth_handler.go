package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"mysterybox/internal/domain"
	"mysterybox/internal/middleware"
	"mysterybox/internal/oauth"
	"mysterybox/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthHandler runs the install handshake edges the core is responsible for:
// issuing a single-use state nonce and persisting the credentials the OAuth
// provider hands back. Token exchange and refresh live with the provider.
type AuthHandler struct {
	states  *oauth.StateStore
	tenants repository.TenantRepository
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(states *oauth.StateStore, tenants repository.TenantRepository, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{states: states, tenants: tenants, logger: logger}
}

// RegisterRoutes registers the install flow routes
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/install", h.Install)
		r.Get("/callback", h.Callback)
	})
}

// Install issues a state nonce for the shop starting the install flow.
func (h *AuthHandler) Install(w http.ResponseWriter, r *http.Request) {
	shopDomain := r.URL.Query().Get("shop")
	if shopDomain == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing shop parameter")
		return
	}

	state, err := h.states.Issue(r.Context(), shopDomain)
	if err != nil {
		h.logger.Error("Failed to issue oauth state", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to start install")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"shop":  shopDomain,
		"state": state,
	})
}

// Callback consumes the state nonce and stores the opaque access token for
// the shop. Replayed or expired states are rejected.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	token := r.URL.Query().Get("token")
	if state == "" || token == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing state or token parameter")
		return
	}

	shopDomain, err := h.states.Consume(r.Context(), state)
	if err != nil {
		if errors.Is(err, oauth.ErrStateNotFound) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "unknown or expired state")
			return
		}
		h.logger.Error("Failed to consume oauth state", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to complete install")
		return
	}

	if shop := r.URL.Query().Get("shop"); shop != "" && shop != shopDomain {
		middleware.RespondWithError(w, http.StatusUnauthorized,
			fmt.Sprintf("state was issued for %s", shopDomain))
		return
	}

	tenant := &domain.Tenant{
		ID:          uuid.New(),
		ShopDomain:  shopDomain,
		AccessToken: token,
		CreatedAt:   time.Now(),
	}
	if err := h.tenants.Upsert(r.Context(), tenant); err != nil {
		h.logger.Error("Failed to store tenant credentials", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to complete install")
		return
	}

	h.logger.Info("Tenant installed", zap.String("shop_domain", shopDomain))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"shop": shopDomain})
}
