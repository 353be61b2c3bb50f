package middleware

import (
	"context"
	"net/http"

	"mysterybox/internal/domain"
	"mysterybox/internal/repository"

	"go.uber.org/zap"
)

type contextKey string

const (
	TenantKey contextKey = "tenant"
)

// TenantMiddleware resolves the merchant from the X-Shop-Domain header and
// puts it into the request context. Requests for unknown shops are rejected;
// credential validity is the OAuth collaborator's concern, not ours.
func TenantMiddleware(tenants repository.TenantRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shopDomain := r.Header.Get("X-Shop-Domain")
			if shopDomain == "" {
				logger.Debug("Missing shop domain header")
				RespondWithError(w, http.StatusUnauthorized, "missing X-Shop-Domain header")
				return
			}

			tenant, err := tenants.FindByShopDomain(r.Context(), shopDomain)
			if err != nil {
				if err == repository.ErrTenantNotFound {
					logger.Debug("Unknown shop domain", zap.String("shop_domain", shopDomain))
					RespondWithError(w, http.StatusUnauthorized, "unknown shop domain")
					return
				}
				logger.Error("Failed to resolve tenant", zap.Error(err))
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), TenantKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant extracts the resolved tenant from the request context.
func GetTenant(ctx context.Context) (*domain.Tenant, bool) {
	tenant, ok := ctx.Value(TenantKey).(*domain.Tenant)
	return tenant, ok
}
